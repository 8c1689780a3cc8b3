package tailnet

import (
	"fmt"

	"github.com/dep2p/go-tailnet/internal/engine"
)

// loopbackAddrBufSize 回环地址缓冲区大小
const loopbackAddrBufSize = 256

// LoopbackInfo 本地回环服务的连接信息
//
// 回环服务同时是覆盖网络的 SOCKS5 代理（用户名 "tsnet"，密码 ProxyCred）
// 和 LocalAPI 服务（请求需带 "Sec-Tailscale: localapi" 头，基本认证密码
// 为 LocalAPICred）。见 pkg/localapi。
type LoopbackInfo struct {
	// Addr 回环服务地址（host:port）
	Addr string

	// ProxyCred SOCKS5 代理凭据
	ProxyCred string

	// LocalAPICred LocalAPI 凭据
	LocalAPICred string
}

// String 不输出凭据
func (i LoopbackInfo) String() string {
	return fmt.Sprintf("LoopbackInfo{addr=%s}", i.Addr)
}

// Loopback 启动本地回环服务并返回连接信息
func (s *Server) Loopback() (LoopbackInfo, error) {
	if s.closed.Load() {
		return LoopbackInfo{}, ErrServerClosed
	}

	addr := make([]byte, loopbackAddrBufSize)
	proxyCred := make([]byte, engine.CredentialSize)
	localAPICred := make([]byte, engine.CredentialSize)

	if st := s.eng.Loopback(s.h, addr, proxyCred, localAPICred); st != engine.StatusOK {
		return LoopbackInfo{}, s.engineError("loopback", st)
	}

	var info LoopbackInfo
	for _, f := range []struct {
		name string
		buf  []byte
		dst  *string
	}{
		{"address", addr, &info.Addr},
		{"proxy credential", proxyCred, &info.ProxyCred},
		{"LocalAPI credential", localAPICred, &info.LocalAPICred},
	} {
		v, ok := cString(f.buf)
		if !ok {
			return LoopbackInfo{}, s.malformed("loopback", f.name+" is not NUL-terminated")
		}
		*f.dst = v
	}

	s.log.Info("回环服务已启动", "addr", info.Addr)
	return info, nil
}

// EnableFunnel 通过 Funnel 公开节点
//
// 公网 HTTPS 请求在节点上终止 TLS，以明文 HTTP/1 转发到本机 port。
// 本机端口上没有服务时只会在请求到来时出错，这里不做检查。
func (s *Server) EnableFunnel(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidArgument, port)
	}
	if s.closed.Load() {
		return ErrServerClosed
	}

	if st := s.eng.EnableFunnelToLocalhostPlaintextHTTP1(s.h, port); st != engine.StatusOK {
		return s.engineError("enable_funnel", st)
	}
	s.log.Info("已开启 Funnel 转发", "port", port)
	return nil
}
