package tailnet

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/dep2p/go-tailnet/internal/engine"
	"github.com/dep2p/go-tailnet/internal/fdutil"
)

// 缓冲区大小
const (
	// remoteAddrBufSize 对端地址缓冲区（INET6_ADDRSTRLEN）
	remoteAddrBufSize = 46

	// DefaultAddrsBufSize LocalAddrs 与 CertDomains 的默认缓冲区大小
	DefaultAddrsBufSize = 2048
)

// ════════════════════════════════════════════════════════════════════════════
//                              Dial / Listen
// ════════════════════════════════════════════════════════════════════════════

// Dial 连接覆盖网络上的地址
//
// network 不区分大小写，取值为 tcp、udp、tcp4、tcp6、udp4、udp6；
// address 为 host:port，host 可以是 IP 或主机名。首次使用时隐式启动引擎。
// 失败时不会分配 Conn。
func (s *Server) Dial(network, address string) (*Conn, error) {
	nw, err := checkNetAddr(network, address)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStarted(); err != nil {
		s.metrics.Dial(nw, err)
		return nil, err
	}

	st, fd := s.eng.Dial(s.h, nw, address)
	if st != engine.StatusOK {
		err := s.engineError("dial", st)
		s.metrics.Dial(nw, err)
		return nil, err
	}
	if fd < 0 {
		err := s.malformed("dial", fmt.Sprintf("engine returned descriptor %d", fd))
		s.metrics.Dial(nw, err)
		return nil, err
	}

	c := newConn(s, fd, DirOutbound, nw, address)
	s.metrics.Dial(nw, nil)
	s.log.Debug("已建立出站连接", "conn", c.ID(), "network", nw, "address", address)
	return c, nil
}

// Listen 在覆盖网络上监听
//
// address 为 ":port" 时监听节点的全部地址。首次使用时隐式启动引擎。
func (s *Server) Listen(network, address string) (*Listener, error) {
	return s.listen(network, address, false, false)
}

// ListenFunnel 在公网（Funnel）上监听
//
// 默认同时接受覆盖网络内的连接；funnelOnly 为 true 时只接受来自公网的连接。
// Funnel 只支持 TCP，且只开放 443、8443、10000 端口。
func (s *Server) ListenFunnel(network, address string, funnelOnly bool) (*Listener, error) {
	return s.listen(network, address, true, funnelOnly)
}

func (s *Server) listen(network, address string, funnel, funnelOnly bool) (*Listener, error) {
	op := "listen"
	if funnel {
		op = "listen_funnel"
	}

	nw, err := checkNetAddr(network, address)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStarted(); err != nil {
		s.metrics.Listen(nw, err)
		return nil, err
	}

	var st, fd int
	if funnel {
		st, fd = s.eng.ListenFunnel(s.h, nw, address, funnelOnly)
	} else {
		st, fd = s.eng.Listen(s.h, nw, address)
	}
	if st != engine.StatusOK {
		err := s.engineError(op, st)
		s.metrics.Listen(nw, err)
		return nil, err
	}
	if fd < 0 {
		err := s.malformed(op, fmt.Sprintf("engine returned descriptor %d", fd))
		s.metrics.Listen(nw, err)
		return nil, err
	}

	ln := newListener(s, fd, nw, address, funnel)
	s.metrics.Listen(nw, nil)
	s.log.Info("已开始监听", "listener", ln.ID(), "network", nw, "address", address, "funnel", funnel)
	return ln, nil
}

// checkNetAddr 归一化网络名并检查地址可以跨越引擎边界
func checkNetAddr(network, address string) (string, error) {
	nw := strings.ToLower(network)
	switch nw {
	case "tcp", "tcp4", "tcp6", "udp", "udp4", "udp6":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, network)
	}
	if strings.IndexByte(address, 0) >= 0 {
		return "", fmt.Errorf("%w: address contains NUL byte", ErrInvalidArgument)
	}
	return nw, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              地址查询
// ════════════════════════════════════════════════════════════════════════════

// RemoteAddr 返回经 ln 接受的连接 c 的对端 IP
//
// c 不是由 ln 接受的连接时返回 *EngineError，不会返回无意义的地址。
// 缓冲区不足与描述符无效同样以 *EngineError 报告。ln 必须属于 s，
// 引擎把错误描述记在监听所属的实例上。
func (s *Server) RemoteAddr(c *Conn, ln *Listener) (netip.Addr, error) {
	if c == nil || ln == nil {
		return netip.Addr{}, fmt.Errorf("%w: nil connection or listener", ErrInvalidArgument)
	}
	if ln.srv != s {
		return netip.Addr{}, fmt.Errorf("%w: listener %s belongs to another server", ErrInvalidArgument, ln.id)
	}
	if s.closed.Load() {
		return netip.Addr{}, ErrServerClosed
	}

	buf := make([]byte, remoteAddrBufSize)
	var st int
	err := ln.fd.Do(func(lfd int) error {
		return c.fd.Do(func(cfd int) error {
			st = s.eng.GetRemoteAddr(lfd, cfd, buf)
			return nil
		})
	})
	if errors.Is(err, fdutil.ErrClosed) {
		if ln.fd.Closed() {
			return netip.Addr{}, ErrListenerClosed
		}
		return netip.Addr{}, ErrConnClosed
	}
	if st != engine.StatusOK {
		return netip.Addr{}, s.engineError("getremoteaddr", st)
	}

	text, ok := cString(buf)
	if !ok {
		return netip.Addr{}, s.malformed("getremoteaddr", "address is not NUL-terminated")
	}
	addr, perr := netip.ParseAddr(text)
	if perr != nil {
		return netip.Addr{}, s.malformed("getremoteaddr", fmt.Sprintf("unparsable address %q", text))
	}
	return addr, nil
}

// LocalAddrs 返回节点的覆盖网络地址
//
// 节点未启动时通常为空（nil, nil）。
func (s *Server) LocalAddrs() ([]netip.Addr, error) {
	return s.LocalAddrsBuffer(DefaultAddrsBufSize)
}

// LocalAddrsBuffer 同 LocalAddrs，使用 size 字节的缓冲区
//
// 缓冲区不足时引擎报告 ERANGE，返回 *EngineError。
func (s *Server) LocalAddrsBuffer(size int) ([]netip.Addr, error) {
	list, err := s.queryList("getips", size, s.eng.GetIPs)
	if err != nil || len(list) == 0 {
		return nil, err
	}

	addrs := make([]netip.Addr, 0, len(list))
	for _, item := range list {
		a, perr := netip.ParseAddr(item)
		if perr != nil {
			return nil, s.malformed("getips", fmt.Sprintf("unparsable address %q", item))
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

// CertDomains 返回节点可以签发 TLS 证书的域名，即节点的 DNS 名称
//
// 节点未运行时为空（nil, nil）。
func (s *Server) CertDomains() ([]string, error) {
	return s.queryList("cert_domains", DefaultAddrsBufSize, s.eng.CertDomains)
}

// queryList 调用写入逗号分隔列表的引擎查询
func (s *Server) queryList(op string, size int, call func(engine.Handle, []byte) int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", ErrInvalidArgument, size)
	}
	if s.closed.Load() {
		return nil, ErrServerClosed
	}

	buf := make([]byte, size)
	if st := call(s.h, buf); st != engine.StatusOK {
		return nil, s.engineError(op, st)
	}
	text, ok := cString(buf)
	if !ok {
		return nil, s.malformed(op, "result is not NUL-terminated")
	}

	var out []string
	for _, item := range strings.Split(text, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}
