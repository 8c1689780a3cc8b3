package enginetest

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/engine"
)

// ============================================================================
//                              Loopback
// ============================================================================

// Loopback 启动节点的本地回环服务，重复调用返回同一组地址与凭据
//
// 回环端口同时提供 SOCKS5（用户名 tsnet，密码为代理凭据）和 LocalAPI
// （Sec-Tailscale: localapi 头 + 基本认证密码为 LocalAPI 凭据）。
func (n *Network) Loopback(h engine.Handle, addr, proxyCred, localAPICred []byte) int {
	if len(addr) == 0 || len(proxyCred) < engine.CredentialSize || len(localAPICred) < engine.CredentialSize {
		panic("enginetest: loopback passed short buffers")
	}
	addr[0], proxyCred[0], localAPICred[0] = 0, 0, 0

	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF)
	}
	if err := n.startLocked(nd); err != nil {
		return nd.recErr(err)
	}
	if nd.loopback == nil {
		lb, err := newLoopbackServer(n, nd)
		if err != nil {
			return nd.recErr(fmt.Errorf("loopback: %w", err))
		}
		nd.loopback = lb
	}

	a := nd.loopback.ln.Addr().String()
	if len(a)+1 > len(addr) {
		return nd.recErr(fmt.Errorf("loopback addr of %d bytes is too long for addrlen %d", len(a), len(addr)))
	}
	putString(addr, a)
	copy(proxyCred, nd.loopback.proxyCred)
	proxyCred[32] = 0
	copy(localAPICred, nd.loopback.localAPICred)
	localAPICred[32] = 0
	return nd.recErr(nil)
}

// EnableFunnelToLocalhostPlaintextHTTP1 记录 Funnel 转发端口
func (n *Network) EnableFunnelToLocalhostPlaintextHTTP1(h engine.Handle, port int) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF)
	}
	if err := n.startLocked(nd); err != nil {
		return nd.recErr(err)
	}
	if port <= 0 || port > 65535 {
		return nd.recErr(fmt.Errorf("funnel: invalid port %d", port))
	}
	nd.funnel = append(nd.funnel, port)
	nd.logf("funnel: forwarding https://%s.%s to http://127.0.0.1:%d", nd.hostname, Domain, port)
	return nd.recErr(nil)
}

// FunnelPorts 返回已开启 Funnel 转发的本地端口
func (n *Network) FunnelPorts(h engine.Handle) []int {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return nil
	}
	return append([]int(nil), nd.funnel...)
}

// ============================================================================
//                              回环服务
// ============================================================================

type loopbackServer struct {
	net          *Network
	h            engine.Handle
	ln           net.Listener
	proxyCred    string
	localAPICred string

	httpConns chan net.Conn
	httpSrv   *http.Server
	done      chan struct{}
	once      sync.Once
}

func newLoopbackServer(n *Network, nd *node) (*loopbackServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	lb := &loopbackServer{
		net:          n,
		h:            nd.h,
		ln:           ln,
		proxyCred:    randomCred(),
		localAPICred: randomCred(),
		httpConns:    make(chan net.Conn),
		done:         make(chan struct{}),
	}
	lb.httpSrv = &http.Server{Handler: lb.localAPI()}
	go func() { _ = lb.httpSrv.Serve(chanListener{lb}) }()
	go lb.serve()
	return lb, nil
}

func (lb *loopbackServer) close() {
	lb.once.Do(func() {
		close(lb.done)
		_ = lb.ln.Close()
		_ = lb.httpSrv.Close()
	})
}

// serve 按首字节区分 SOCKS5 与 HTTP
func (lb *loopbackServer) serve() {
	for {
		c, err := lb.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			br := bufio.NewReader(c)
			first, err := br.Peek(1)
			if err != nil {
				_ = c.Close()
				return
			}
			bc := &bufferedConn{Conn: c, r: br}
			if first[0] == socksVersion {
				lb.serveSOCKS(bc)
				return
			}
			select {
			case lb.httpConns <- bc:
			case <-lb.done:
				_ = c.Close()
			}
		}()
	}
}

// localAPI LocalAPI 处理器
func (lb *loopbackServer) localAPI() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/localapi/v0/status", func(w http.ResponseWriter, r *http.Request) {
		lb.net.mu.Lock()
		nd := lb.net.nodes[lb.h]
		var st map[string]any
		if nd != nil {
			st = map[string]any{
				"BackendState": "Running",
				"Self": map[string]any{
					"HostName":     nd.hostname,
					"DNSName":      nd.hostname + "." + Domain + ".",
					"TailscaleIPs": []string{nd.ip4.String(), nd.ip6.String()},
				},
			}
		}
		lb.net.mu.Unlock()
		if st == nil {
			http.Error(w, "server closed", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, st)
	})
	mux.HandleFunc("/localapi/v0/prefs", func(w http.ResponseWriter, r *http.Request) {
		lb.net.mu.Lock()
		nd := lb.net.nodes[lb.h]
		var prefs map[string]any
		if nd != nil {
			prefs = map[string]any{
				"ControlURL":  nd.controlURL,
				"Hostname":    nd.hostname,
				"WantRunning": nd.started,
			}
		}
		lb.net.mu.Unlock()
		if prefs == nil {
			http.Error(w, "server closed", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, prefs)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Sec-Tailscale") != "localapi" {
			http.Error(w, "missing Sec-Tailscale header", http.StatusForbidden)
			return
		}
		if _, pass, ok := r.BasicAuth(); !ok || pass != lb.localAPICred {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ============================================================================
//                              SOCKS5（RFC 1928 / RFC 1929 子集）
// ============================================================================

const (
	socksVersion     = 0x05
	socksAuthUser    = 0x02
	socksAuthNone    = 0xff
	socksCmdConnect  = 0x01
	socksAtypIPv4    = 0x01
	socksAtypDomain  = 0x03
	socksAtypIPv6    = 0x04
	socksRepSuccess  = 0x00
	socksRepFailure  = 0x01
	socksRepRefused  = 0x05
	socksRepCmdUnsup = 0x07
)

func (lb *loopbackServer) serveSOCKS(c net.Conn) {
	defer c.Close()

	// 协商认证方式：只接受用户名/密码
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(c, hdr); err != nil {
		return
	}
	methods := make([]byte, hdr[1])
	if _, err := io.ReadFull(c, methods); err != nil {
		return
	}
	offered := false
	for _, m := range methods {
		if m == socksAuthUser {
			offered = true
		}
	}
	if !offered {
		_, _ = c.Write([]byte{socksVersion, socksAuthNone})
		return
	}
	_, _ = c.Write([]byte{socksVersion, socksAuthUser})

	user, pass, err := readUserPass(c)
	if err != nil {
		return
	}
	if user != "tsnet" || pass != lb.proxyCred {
		_, _ = c.Write([]byte{0x01, 0x01})
		return
	}
	_, _ = c.Write([]byte{0x01, 0x00})

	target, cmd, err := readRequest(c)
	if err != nil {
		return
	}
	if cmd != socksCmdConnect {
		writeReply(c, socksRepCmdUnsup)
		return
	}

	st, fd := lb.net.Dial(lb.h, "tcp", target)
	if st != engine.StatusOK {
		writeReply(c, socksRepRefused)
		return
	}
	f := os.NewFile(uintptr(fd), "tailnet-conn")
	remote, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		writeReply(c, socksRepFailure)
		return
	}
	defer remote.Close()
	writeReply(c, socksRepSuccess)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(remote, c)
		if cw, ok := remote.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	}()
	_, _ = io.Copy(c, remote)
	wg.Wait()
}

func readUserPass(r io.Reader) (string, string, error) {
	var ver [1]byte
	if _, err := io.ReadFull(r, ver[:]); err != nil {
		return "", "", err
	}
	if ver[0] != 0x01 {
		return "", "", errors.New("bad auth version")
	}
	user, err := readLenPrefixed(r)
	if err != nil {
		return "", "", err
	}
	pass, err := readLenPrefixed(r)
	return user, pass, err
}

func readLenPrefixed(r io.Reader) (string, error) {
	var l [1]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return "", err
	}
	b := make([]byte, l[0])
	_, err := io.ReadFull(r, b)
	return string(b), err
}

func readRequest(r io.Reader) (string, byte, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return "", 0, err
	}
	var host string
	switch hdr[3] {
	case socksAtypIPv4, socksAtypIPv6:
		size := 4
		if hdr[3] == socksAtypIPv6 {
			size = 16
		}
		ip := make(net.IP, size)
		if _, err := io.ReadFull(r, ip); err != nil {
			return "", 0, err
		}
		host = ip.String()
	case socksAtypDomain:
		name, err := readLenPrefixed(r)
		if err != nil {
			return "", 0, err
		}
		host = name
	default:
		return "", 0, fmt.Errorf("unknown address type %d", hdr[3])
	}
	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return "", 0, err
	}
	return net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(port[:])))), hdr[1], nil
}

func writeReply(w io.Writer, rep byte) {
	_, _ = w.Write([]byte{socksVersion, rep, 0x00, socksAtypIPv4, 0, 0, 0, 0, 0, 0})
}

// ============================================================================
//                              内部工具
// ============================================================================

// bufferedConn 保留已预读的首字节
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }

// chanListener 将分流后的 HTTP 连接交给 http.Server
type chanListener struct{ lb *loopbackServer }

func (l chanListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.lb.httpConns:
		return c, nil
	case <-l.lb.done:
		return nil, net.ErrClosed
	}
}

func (l chanListener) Close() error   { return nil }
func (l chanListener) Addr() net.Addr { return l.lb.ln.Addr() }

func randomCred() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
