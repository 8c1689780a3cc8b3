package enginetest

import (
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/engine"
	"github.com/dep2p/go-tailnet/internal/fdpass"
)

// handoffPayload 每条交接消息携带的数据部分
var handoffPayload = []byte("hello")

// ============================================================================
//                              Dial
// ============================================================================

// Dial 连接模拟网络中的另一个节点
//
// 首次使用时隐式启动节点。成功时返回的描述符由调用方独占，
// 对端描述符经目标监听的交接通道推送后，本端引用立即关闭。
func (n *Network) Dial(h engine.Handle, network, addr string) (int, int) {
	n.mu.Lock()
	nd := n.nodes[h]
	if nd == nil {
		n.mu.Unlock()
		return int(unix.EBADF), -1
	}
	if err := n.startLocked(nd); err != nil {
		st := nd.recErr(err)
		n.mu.Unlock()
		return st, -1
	}

	ln, from, err := n.resolveLocked(nd, network, addr)
	if err != nil {
		st := nd.recErr(err)
		n.mu.Unlock()
		return st, -1
	}
	n.mu.Unlock()

	local, remote, err := connPair(ln.key)
	if err != nil {
		return n.fail(h, fmt.Errorf("dial %s %s: %w", network, addr, err)), -1
	}
	ino, err := inodeOf(remote)
	if err != nil {
		closeFds(local, remote)
		return n.fail(h, fmt.Errorf("dial %s %s: %w", network, addr, err)), -1
	}

	// 先登记对端地址，接收方一拿到描述符就可以查询
	n.mu.Lock()
	ln.remotes[ino] = from
	n.mu.Unlock()

	err = fdpass.Send(ln.sendFd, remote, handoffPayload)
	_ = unix.Close(remote)
	if err != nil {
		_ = unix.Close(local)
		n.mu.Lock()
		delete(ln.remotes, ino)
		n.dropListenerLocked(ln)
		n.mu.Unlock()
		return n.fail(h, fmt.Errorf("dial %s %s: connection refused", network, addr)), -1
	}

	n.mu.Lock()
	if nd, ok := n.nodes[h]; ok {
		nd.logf("dial %s %s from %s", network, addr, from)
		nd.recErr(nil)
	}
	n.mu.Unlock()
	return engine.StatusOK, local
}

// resolveLocked 解析目标地址，返回目标监听和拨号方使用的源地址
func (n *Network) resolveLocked(nd *node, network, addr string) (*listener, netip.Addr, error) {
	proto, family, err := splitNetwork(network)
	if err != nil {
		return nil, netip.Addr{}, fmt.Errorf("dial %s %s: %w", network, addr, err)
	}
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, netip.Addr{}, fmt.Errorf("dial %s %s: %w", network, addr, err)
	}

	var (
		target *node
		useV6  = family == 6
	)
	if ip, perr := netip.ParseAddr(host); perr == nil {
		ip = ip.Unmap()
		if (family == 4 && !ip.Is4()) || (family == 6 && !ip.Is6()) {
			return nil, netip.Addr{}, fmt.Errorf("dial %s %s: address family mismatch", network, addr)
		}
		useV6 = ip.Is6()
		target = n.nodeByIPLocked(ip)
	} else {
		target = n.nodeByNameLocked(host)
	}
	if target == nil {
		return nil, netip.Addr{}, fmt.Errorf("dial %s %s: lookup %s: no such host", network, addr, host)
	}

	ln := target.listeners[listenerKey(proto, port)]
	if ln == nil || !alive(ln.sendFd) {
		if ln != nil {
			n.dropListenerLocked(ln)
		}
		return nil, netip.Addr{}, fmt.Errorf("dial %s %s: connection refused", network, addr)
	}

	from := nd.ip4
	if useV6 {
		from = nd.ip6
	}
	return ln, from, nil
}

func (n *Network) nodeByIPLocked(ip netip.Addr) *node {
	for _, nd := range n.nodes {
		if nd.started && (nd.ip4 == ip || nd.ip6 == ip) {
			return nd
		}
	}
	return nil
}

func (n *Network) nodeByNameLocked(host string) *node {
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimSuffix(strings.ToLower(host), "."+Domain)
	for _, nd := range n.nodes {
		if nd.started && strings.EqualFold(nd.hostname, host) {
			return nd
		}
	}
	return nil
}

// fail 记录错误（节点可能已在锁外被关闭）
func (n *Network) fail(h engine.Handle, err error) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF)
	}
	return nd.recErr(err)
}

// ============================================================================
//                              Listen
// ============================================================================

// Listen 在节点上监听
func (n *Network) Listen(h engine.Handle, network, addr string) (int, int) {
	return n.listen(h, network, addr, false)
}

// ListenFunnel 在节点上监听，并标记为 Funnel 入口
//
// 模拟网络没有公网：funnelOnly 只影响日志。
func (n *Network) ListenFunnel(h engine.Handle, network, addr string, funnelOnly bool) (int, int) {
	n.mu.Lock()
	if nd := n.nodes[h]; nd != nil {
		nd.logf("funnel listen %s %s funnelOnly=%t", network, addr, funnelOnly)
	}
	n.mu.Unlock()
	return n.listen(h, network, addr, true)
}

func (n *Network) listen(h engine.Handle, network, addr string, funnel bool) (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF), -1
	}
	if err := n.startLocked(nd); err != nil {
		return nd.recErr(err), -1
	}

	proto, _, err := splitNetwork(network)
	if err != nil {
		return nd.recErr(fmt.Errorf("listen %s %s: %w", network, addr, err)), -1
	}
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nd.recErr(fmt.Errorf("listen %s %s: %w", network, addr, err)), -1
	}
	if host != "" {
		ip, perr := netip.ParseAddr(host)
		if perr != nil || (ip.Unmap() != nd.ip4 && ip != nd.ip6) {
			return nd.recErr(fmt.Errorf("listen %s %s: address not assigned to this node", network, addr)), -1
		}
	}
	if funnel && proto != "tcp" {
		return nd.recErr(fmt.Errorf("listen %s %s: funnel supports tcp only", network, addr)), -1
	}

	if port == 0 {
		port = n.allocPortLocked(nd, proto)
	}
	key := listenerKey(proto, port)
	if old := nd.listeners[key]; old != nil {
		if alive(old.sendFd) {
			return nd.recErr(fmt.Errorf("listen %s %s: address already in use", network, addr)), -1
		}
		n.dropListenerLocked(old)
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nd.recErr(fmt.Errorf("listen %s %s: socketpair: %w", network, addr, err)), -1
	}
	ino, err := inodeOf(fds[0])
	if err != nil {
		closeFds(fds[0], fds[1])
		return nd.recErr(fmt.Errorf("listen %s %s: %w", network, addr, err)), -1
	}

	ln := &listener{
		node:    nd,
		key:     key,
		port:    port,
		sendFd:  fds[1],
		inode:   ino,
		funnel:  funnel,
		remotes: make(map[uint64]netip.Addr),
	}
	nd.listeners[key] = ln
	n.listeners[ino] = ln
	nd.logf("listening on %s port %d", proto, port)
	nd.recErr(nil)
	return engine.StatusOK, fds[0]
}

func (n *Network) allocPortLocked(nd *node, proto string) int {
	for {
		p := nd.nextPort
		nd.nextPort++
		if nd.nextPort > 65535 {
			nd.nextPort = firstEphemeralPort
		}
		if nd.listeners[listenerKey(proto, p)] == nil {
			return p
		}
	}
}

// dropListenerLocked 注销已被调用方关闭的监听
func (n *Network) dropListenerLocked(ln *listener) {
	if ln.node.listeners[ln.key] != ln {
		return
	}
	delete(ln.node.listeners, ln.key)
	delete(n.listeners, ln.inode)
	_ = unix.Close(ln.sendFd)
}

// ============================================================================
//                              地址查询
// ============================================================================

// GetRemoteAddr 查询经 listenerFd 接受的连接 connFd 的对端地址
//
// 两个描述符都按 inode 识别，接收方持有的描述符编号与推送时不同也能命中。
func (n *Network) GetRemoteAddr(listenerFd, connFd int, buf []byte) int {
	lnIno, err := inodeOf(listenerFd)
	if err != nil {
		return int(unix.EBADF)
	}
	connIno, err := inodeOf(connFd)
	if err != nil {
		return int(unix.EBADF)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ln := n.listeners[lnIno]
	if ln == nil {
		return int(unix.EBADF)
	}
	ip, ok := ln.remotes[connIno]
	if !ok {
		ln.node.lastErr = fmt.Sprintf("getremoteaddr: descriptor %d was not accepted on listener %d", connFd, listenerFd)
		return int(unix.EBADF)
	}
	if st := putString(buf, ip.String()); st != engine.StatusOK {
		ln.node.lastErr = fmt.Sprintf("getremoteaddr: buffer of %d bytes too small", len(buf))
		return st
	}
	return engine.StatusOK
}

// GetIPs 写入节点地址（逗号分隔），未启动时为空
func (n *Network) GetIPs(h engine.Handle, buf []byte) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF)
	}
	s := ""
	if nd.started {
		s = nd.ip4.String() + "," + nd.ip6.String()
	}
	if st := putString(buf, s); st != engine.StatusOK {
		nd.lastErr = fmt.Sprintf("getips: buffer of %d bytes too small for %d bytes", len(buf), len(s)+1)
		return st
	}
	return engine.StatusOK
}

// CertDomains 写入证书域名（逗号分隔），未启动时为空
func (n *Network) CertDomains(h engine.Handle, buf []byte) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF)
	}
	s := ""
	if nd.started {
		s = strings.ToLower(nd.hostname) + "." + Domain
	}
	if st := putString(buf, s); st != engine.StatusOK {
		nd.lastErr = fmt.Sprintf("cert_domains: buffer of %d bytes too small", len(buf))
		return st
	}
	return engine.StatusOK
}

// ============================================================================
//                              内部工具
// ============================================================================

func listenerKey(proto string, port int) string {
	return fmt.Sprintf("%s/%d", proto, port)
}

// connPair 创建一条连接的两端，udp 使用数据报套接字
func connPair(key string) (int, int, error) {
	typ := unix.SOCK_STREAM
	if strings.HasPrefix(key, "udp/") {
		typ = unix.SOCK_DGRAM
	}
	fds, err := unix.Socketpair(unix.AF_UNIX, typ|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// alive 调用方一端是否仍然打开
func alive(sendFd int) bool {
	pfd := []unix.PollFd{{Fd: int32(sendFd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, 0)
	if err != nil || n == 0 {
		return err == nil
	}
	if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return false
	}
	// 调用方从不写入交接通道，可读只可能是 EOF
	var b [1]byte
	m, _, err := unix.Recvfrom(sendFd, b[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
	return !(err == nil && m == 0)
}

func closeFds(fds ...int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
