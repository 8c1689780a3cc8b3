// Package addrutil 提供覆盖网络地址的分类工具
package addrutil

import (
	"net"
	"net/netip"
)

// ============================================================================
//                              地址段
// ============================================================================

var (
	// tailnetV4 覆盖网络 IPv4 地址段（CGNAT 100.64.0.0/10）
	tailnetV4 = netip.MustParsePrefix("100.64.0.0/10")

	// tailnetV6 覆盖网络 IPv6 地址段（ULA fd7a:115c:a1e0::/48）
	tailnetV6 = netip.MustParsePrefix("fd7a:115c:a1e0::/48")
)

// ============================================================================
//                              类型判断
// ============================================================================

// IsTailnetAddr 判断是否为覆盖网络分配的节点地址
func IsTailnetAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return tailnetV4.Contains(ip) || tailnetV6.Contains(ip)
}

// IsPrivateAddr 判断是否为私网地址（含链路本地）
//
// 覆盖网络的 IPv6 地址段属于 fc00::/7，这里同样返回 true；
// 需要区分时先调用 IsTailnetAddr。
func IsPrivateAddr(ip netip.Addr) bool {
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// IsPublicAddr 判断是否为公网单播地址
func IsPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !IsTailnetAddr(ip)
}

// AddrType 返回地址类型描述
//
// 返回值：
//   - "tailnet" - 覆盖网络节点地址
//   - "loopback" - 回环地址
//   - "private" - 私网地址
//   - "public" - 公网地址
//   - "unknown" - 无效或其他地址
func AddrType(ip netip.Addr) string {
	switch {
	case !ip.IsValid():
		return "unknown"
	case IsTailnetAddr(ip):
		return "tailnet"
	case ip.IsLoopback():
		return "loopback"
	case IsPrivateAddr(ip):
		return "private"
	case IsPublicAddr(ip):
		return "public"
	}
	return "unknown"
}

// HostType 从 host:port 或纯 IP 字符串中提取地址并分类
//
// 主机名（MagicDNS 名称等）无法直接判断，返回 "dns"。
func HostType(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" {
		return "unknown"
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return "dns"
	}
	return AddrType(ip)
}
