// Package enginetest 提供测试用的引擎实现
//
// Network 是一个进程内的模拟网络：每个引擎实例是其中一个节点，连接和
// 监听都由真实的 socketpair(2) 承载，接受的连接经 SCM_RIGHTS 推送到
// 监听描述符上，与真实引擎在描述符层面的行为一致。
//
// MockEngine 是 gomock 生成的 engine.Engine 模拟，用于调用顺序与故障注入测试。
package enginetest

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/engine"
)

// Domain 模拟网络的 MagicDNS 后缀
const Domain = "tailnet-test.ts.net"

// firstHandle 首个实例句柄
const firstHandle engine.Handle = 42<<16 + 1

// firstEphemeralPort 端口 0 时分配的起始端口
const firstEphemeralPort = 40000

var (
	ipv4Prefix = netip.MustParsePrefix("100.64.0.0/10")
	ipv6Prefix = netip.MustParsePrefix("fd7a:115c:a1e0::/48")
)

// Network 模拟网络
//
// 零值不可用，使用 NewNetwork 创建。所有方法并发安全。
type Network struct {
	// BlockUp 为 true 时 Up 一直阻塞到实例被 Close
	BlockUp bool

	// RejectAuthKey 返回 true 时启动失败（模拟控制面拒绝认证密钥）
	RejectAuthKey func(key string) bool

	mu        sync.Mutex
	blocked   int // 阻塞在 Up 中的调用数
	next      engine.Handle
	seq       int
	nodes     map[engine.Handle]*node
	listeners map[uint64]*listener // 键：调用方一端的 inode
}

var _ engine.Engine = (*Network)(nil)

// NewNetwork 创建空的模拟网络
func NewNetwork() *Network {
	return &Network{
		next:      firstHandle,
		nodes:     make(map[engine.Handle]*node),
		listeners: make(map[uint64]*listener),
	}
}

// node 一个模拟节点
type node struct {
	h     engine.Handle
	index int

	dir        string
	hostname   string
	authKey    string
	controlURL string
	ephemeral  bool
	logFD      int

	started    bool
	startCalls int
	closed     chan struct{}
	lastErr    string

	ip4, ip6 netip.Addr

	listeners map[string]*listener // 键：proto/port
	nextPort  int

	loopback *loopbackServer
	funnel   []int
}

// listener 一个模拟监听
type listener struct {
	node   *node
	key    string
	port   int
	sendFd int    // 引擎一端
	inode  uint64 // 调用方一端
	funnel bool

	remotes map[uint64]netip.Addr // 已推送连接的 inode → 对端地址
}

// ============================================================================
//                              生命周期
// ============================================================================

// New 创建节点，地址在创建时分配
func (n *Network) New() engine.Handle {
	n.mu.Lock()
	defer n.mu.Unlock()

	h := n.next
	n.next++
	n.seq++

	nd := &node{
		h:         h,
		index:     n.seq,
		logFD:     -2,
		closed:    make(chan struct{}),
		listeners: make(map[string]*listener),
		nextPort:  firstEphemeralPort,
		ip4:       nthAddr(ipv4Prefix, n.seq),
		ip6:       nthAddr(ipv6Prefix, n.seq),
	}
	n.nodes[h] = nd
	return h
}

// Start 启动节点
func (n *Network) Start(h engine.Handle) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF)
	}
	nd.startCalls++
	return nd.recErr(n.startLocked(nd))
}

func (n *Network) startLocked(nd *node) error {
	if nd.started {
		return nil
	}
	if n.RejectAuthKey != nil && n.RejectAuthKey(nd.authKey) {
		return fmt.Errorf("tsnet: invalid key: unable to validate API key")
	}
	if nd.hostname == "" {
		nd.hostname = fmt.Sprintf("node-%d", nd.index)
	}
	for _, other := range n.nodes {
		if other != nd && other.started && strings.EqualFold(other.hostname, nd.hostname) {
			// 同名节点：控制面自动追加序号
			nd.hostname = fmt.Sprintf("%s-%d", nd.hostname, nd.index)
			break
		}
	}
	nd.started = true
	nd.logf("tsnet starting with hostname %q, varRoot %q", nd.hostname, nd.dir)
	return nil
}

// Up 启动节点并等待可用
func (n *Network) Up(h engine.Handle) int {
	n.mu.Lock()
	nd := n.nodes[h]
	if nd == nil {
		n.mu.Unlock()
		return int(unix.EBADF)
	}
	if err := n.startLocked(nd); err != nil {
		st := nd.recErr(err)
		n.mu.Unlock()
		return st
	}
	block := n.BlockUp
	closed := nd.closed
	if block {
		n.blocked++
	}
	n.mu.Unlock()

	if block {
		<-closed
		n.mu.Lock()
		defer n.mu.Unlock()
		n.blocked--
		return nd.recErr(fmt.Errorf("tsnet: server closed"))
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	nd.logf("tsnet running state path %s", nd.dir)
	return nd.recErr(nil)
}

// BlockedUps 返回当前阻塞在 Up 中的调用数（BlockUp 为 true 时）
func (n *Network) BlockedUps() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.blocked
}

// Close 释放节点及其全部监听
func (n *Network) Close(h engine.Handle) int {
	n.mu.Lock()
	nd := n.nodes[h]
	if nd == nil {
		n.mu.Unlock()
		return int(unix.EBADF)
	}
	delete(n.nodes, h)
	lns := make([]*listener, 0, len(nd.listeners))
	for _, ln := range nd.listeners {
		lns = append(lns, ln)
		delete(n.listeners, ln.inode)
	}
	nd.listeners = nil
	lb := nd.loopback
	nd.loopback = nil
	close(nd.closed)
	n.mu.Unlock()

	// 引擎一端关闭后，阻塞在 Accept 上的调用方读到 EOF
	for _, ln := range lns {
		_ = unix.Close(ln.sendFd)
	}
	if lb != nil {
		lb.close()
	}
	return engine.StatusOK
}

// ============================================================================
//                              配置
// ============================================================================

// setter 仅在启动前允许修改配置
func (n *Network) setter(h engine.Handle, name string, apply func(nd *node)) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return int(unix.EBADF)
	}
	if nd.started {
		return nd.recErr(fmt.Errorf("tsnet: cannot set %s after the server has started", name))
	}
	apply(nd)
	return nd.recErr(nil)
}

// SetDir 设置状态目录
func (n *Network) SetDir(h engine.Handle, dir string) int {
	return n.setter(h, "dir", func(nd *node) { nd.dir = dir })
}

// SetHostname 设置主机名
func (n *Network) SetHostname(h engine.Handle, hostname string) int {
	return n.setter(h, "hostname", func(nd *node) { nd.hostname = hostname })
}

// SetAuthKey 设置认证密钥
func (n *Network) SetAuthKey(h engine.Handle, authKey string) int {
	return n.setter(h, "authkey", func(nd *node) { nd.authKey = authKey })
}

// SetControlURL 设置控制面地址
func (n *Network) SetControlURL(h engine.Handle, controlURL string) int {
	return n.setter(h, "control_url", func(nd *node) { nd.controlURL = controlURL })
}

// SetEphemeral 设置临时节点
func (n *Network) SetEphemeral(h engine.Handle, ephemeral bool) int {
	return n.setter(h, "ephemeral", func(nd *node) { nd.ephemeral = ephemeral })
}

// SetLogFD 设置日志描述符（描述符仍归调用方所有）
func (n *Network) SetLogFD(h engine.Handle, fd int) int {
	return n.setter(h, "logfd", func(nd *node) { nd.logFD = fd })
}

// ============================================================================
//                              诊断
// ============================================================================

// ErrMsg 写入最近一次错误，空间不足时截断并返回 ERANGE
func (n *Network) ErrMsg(h engine.Handle, buf []byte) int {
	if len(buf) == 0 {
		panic("enginetest: errmsg passed buflen of 0")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		buf[0] = 0
		return int(unix.EBADF)
	}
	m := copy(buf, nd.lastErr)
	if m == len(buf) {
		buf[len(buf)-1] = 0
		return int(unix.ERANGE)
	}
	buf[m] = 0
	return engine.StatusOK
}

// ============================================================================
//                              状态查询
// ============================================================================

// Hostname 返回节点生效的主机名（启动后才确定）
func (n *Network) Hostname(h engine.Handle) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return "", false
	}
	return nd.hostname, true
}

// Config 返回节点当前的配置快照
func (n *Network) Config(h engine.Handle) (NodeConfig, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return NodeConfig{}, false
	}
	return NodeConfig{
		Dir:        nd.dir,
		Hostname:   nd.hostname,
		AuthKey:    nd.authKey,
		ControlURL: nd.controlURL,
		Ephemeral:  nd.ephemeral,
		LogFD:      nd.logFD,
		Started:    nd.started,
		StartCalls: nd.startCalls,
	}, true
}

// NodeConfig 节点配置快照
//
// LogFD 为 -2 表示从未设置。StartCalls 只统计显式的 Start 调用。
type NodeConfig struct {
	Dir        string
	Hostname   string
	AuthKey    string
	ControlURL string
	Ephemeral  bool
	LogFD      int
	Started    bool
	StartCalls int
}

// Addrs 返回节点的 IPv4 与 IPv6 地址
func (n *Network) Addrs(h engine.Handle) (netip.Addr, netip.Addr, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	nd := n.nodes[h]
	if nd == nil {
		return netip.Addr{}, netip.Addr{}, false
	}
	return nd.ip4, nd.ip6, true
}

// ListenerPort 返回调用方持有的监听描述符所对应的端口
func (n *Network) ListenerPort(listenerFd int) (int, bool) {
	ino, err := inodeOf(listenerFd)
	if err != nil {
		return 0, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	ln := n.listeners[ino]
	if ln == nil {
		return 0, false
	}
	return ln.port, true
}

// Len 返回存活的节点数
func (n *Network) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.nodes)
}

// ============================================================================
//                              内部工具
// ============================================================================

// recErr 记录错误并换算为状态码
func (nd *node) recErr(err error) int {
	if err == nil {
		nd.lastErr = ""
		return engine.StatusOK
	}
	nd.lastErr = err.Error()
	nd.logf("error: %v", err)
	return engine.StatusFailed
}

// logf 向配置的日志描述符写一行
func (nd *node) logf(format string, args ...any) {
	if nd.logFD < 0 {
		return
	}
	line := fmt.Sprintf(format, args...) + "\n"
	_, _ = unix.Write(nd.logFD, []byte(line))
}

// nthAddr 返回前缀内的第 n 个地址
func nthAddr(p netip.Prefix, n int) netip.Addr {
	a := p.Addr()
	for i := 0; i < n; i++ {
		a = a.Next()
	}
	return a
}

// inodeOf 返回描述符所指套接字的 inode
func inodeOf(fd int) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, err
	}
	return uint64(st.Ino), nil
}

// putString 将 s 以 NUL 结尾写入 buf
func putString(buf []byte, s string) int {
	if len(s)+1 > len(buf) {
		if len(buf) > 0 {
			buf[0] = 0
		}
		return int(unix.ERANGE)
	}
	m := copy(buf, s)
	buf[m] = 0
	return engine.StatusOK
}

// splitNetwork 将网络名归一为协议，并给出地址族约束（4、6 或 0）
func splitNetwork(network string) (proto string, family int, err error) {
	switch network {
	case "tcp", "udp":
		return network, 0, nil
	case "tcp4", "udp4":
		return network[:3], 4, nil
	case "tcp6", "udp6":
		return network[:3], 6, nil
	}
	return "", 0, fmt.Errorf("unknown network %s", network)
}

// splitHostPort 拆分地址并解析端口
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}
