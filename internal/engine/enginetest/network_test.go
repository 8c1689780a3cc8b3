package enginetest

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/engine"
	"github.com/dep2p/go-tailnet/internal/fdpass"
)

// cstr 截取 NUL 之前的内容
func cstr(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

func errmsg(n *Network, h engine.Handle) string {
	buf := make([]byte, 1024)
	n.ErrMsg(h, buf)
	return cstr(buf)
}

// newStarted 创建并启动一个节点
func newStarted(t *testing.T, n *Network, hostname string) engine.Handle {
	t.Helper()
	h := n.New()
	require.Equal(t, engine.StatusOK, n.SetHostname(h, hostname))
	require.Equal(t, engine.StatusOK, n.Start(h))
	t.Cleanup(func() { n.Close(h) })
	return h
}

// ============================================================================
//                              生命周期与配置
// ============================================================================

// TestNetwork_LateConfigRejected 测试启动后的配置被拒绝
func TestNetwork_LateConfigRejected(t *testing.T) {
	n := NewNetwork()
	h := n.New()
	defer n.Close(h)

	require.Equal(t, engine.StatusOK, n.SetDir(h, "/var/lib/tailnet"))
	require.Equal(t, engine.StatusOK, n.Start(h))

	st := n.SetHostname(h, "late")
	assert.Equal(t, engine.StatusFailed, st)
	assert.Contains(t, errmsg(n, h), "after the server has started")

	cfg, ok := n.Config(h)
	require.True(t, ok)
	assert.Equal(t, "/var/lib/tailnet", cfg.Dir)
	assert.NotEqual(t, "late", cfg.Hostname)
	t.Log("✅ 启动后配置拒绝测试通过")
}

// TestNetwork_UnknownHandle 测试未知句柄返回 EBADF
func TestNetwork_UnknownHandle(t *testing.T) {
	n := NewNetwork()
	h := n.New()
	require.Equal(t, engine.StatusOK, n.Close(h))

	assert.Equal(t, int(unix.EBADF), n.Close(h))
	assert.Equal(t, int(unix.EBADF), n.Start(h))
	assert.Equal(t, int(unix.EBADF), n.ErrMsg(h, make([]byte, 8)))
	st, fd := n.Dial(h, "tcp", "1.2.3.4:80")
	assert.Equal(t, int(unix.EBADF), st)
	assert.Equal(t, -1, fd)
}

// TestNetwork_ErrMsgTruncated 测试错误消息截断
func TestNetwork_ErrMsgTruncated(t *testing.T) {
	n := NewNetwork()
	h := newStarted(t, n, "short")

	st, _ := n.Dial(h, "tcp", "nowhere:80")
	require.NotEqual(t, engine.StatusOK, st)

	buf := make([]byte, 8)
	assert.Equal(t, int(unix.ERANGE), n.ErrMsg(h, buf))
	assert.Equal(t, byte(0), buf[7])
	assert.Len(t, cstr(buf), 7)
}

// TestNetwork_RejectAuthKey 测试控制面拒绝认证密钥
func TestNetwork_RejectAuthKey(t *testing.T) {
	n := NewNetwork()
	n.RejectAuthKey = func(key string) bool { return key != "tskey-good" }

	h := n.New()
	defer n.Close(h)
	require.Equal(t, engine.StatusOK, n.SetAuthKey(h, "tskey-bad"))

	assert.Equal(t, engine.StatusFailed, n.Up(h))
	assert.Contains(t, errmsg(n, h), "invalid key")
}

// TestNetwork_DuplicateHostname 测试同名节点自动改名
func TestNetwork_DuplicateHostname(t *testing.T) {
	n := NewNetwork()
	a := newStarted(t, n, "dup")
	b := newStarted(t, n, "dup")

	ha, _ := n.Hostname(a)
	hb, _ := n.Hostname(b)
	assert.Equal(t, "dup", ha)
	assert.NotEqual(t, ha, hb)
	assert.True(t, strings.HasPrefix(hb, "dup-"))
}

// ============================================================================
//                              数据面
// ============================================================================

// TestNetwork_DialListenHandoff 测试连接经交接通道送达监听方
func TestNetwork_DialListenHandoff(t *testing.T) {
	n := NewNetwork()
	srv := newStarted(t, n, "server")
	cli := newStarted(t, n, "client")

	st, lnFd := n.Listen(srv, "tcp", ":0")
	require.Equal(t, engine.StatusOK, st, errmsg(n, srv))
	defer unix.Close(lnFd)

	port, ok := n.ListenerPort(lnFd)
	require.True(t, ok)
	assert.Equal(t, firstEphemeralPort, port)

	st, connFd := n.Dial(cli, "tcp", "server."+Domain+":"+strconv.Itoa(port))
	require.Equal(t, engine.StatusOK, st, errmsg(n, cli))
	defer unix.Close(connFd)

	accepted, err := fdpass.Receive(lnFd, 0)
	require.NoError(t, err)
	defer unix.Close(accepted)

	_, err = unix.Write(connFd, []byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	m, err := unix.Read(accepted, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:m]))

	addr := make([]byte, 46)
	require.Equal(t, engine.StatusOK, n.GetRemoteAddr(lnFd, accepted, addr))
	ip4, _, _ := n.Addrs(cli)
	assert.Equal(t, ip4.String(), cstr(addr))
	t.Log("✅ 连接交接测试通过")
}

// TestNetwork_DialByIPv6 测试以 IPv6 地址拨号时对端地址为 IPv6
func TestNetwork_DialByIPv6(t *testing.T) {
	n := NewNetwork()
	srv := newStarted(t, n, "v6server")
	cli := newStarted(t, n, "v6client")

	st, lnFd := n.Listen(srv, "tcp", ":8080")
	require.Equal(t, engine.StatusOK, st)
	defer unix.Close(lnFd)

	_, srv6, _ := n.Addrs(srv)
	st, connFd := n.Dial(cli, "tcp6", "["+srv6.String()+"]:8080")
	require.Equal(t, engine.StatusOK, st, errmsg(n, cli))
	defer unix.Close(connFd)

	accepted, err := fdpass.Receive(lnFd, 0)
	require.NoError(t, err)
	defer unix.Close(accepted)

	addr := make([]byte, 46)
	require.Equal(t, engine.StatusOK, n.GetRemoteAddr(lnFd, accepted, addr))
	_, cli6, _ := n.Addrs(cli)
	assert.Equal(t, cli6.String(), cstr(addr))
}

// TestNetwork_DialFailures 测试拨号失败场景
func TestNetwork_DialFailures(t *testing.T) {
	n := NewNetwork()
	srv := newStarted(t, n, "target")
	cli := newStarted(t, n, "dialer")
	ip4, _, _ := n.Addrs(srv)

	tests := []struct {
		name    string
		network string
		addr    string
		want    string
	}{
		{"未知主机", "tcp", "unknown-host:80", "no such host"},
		{"无监听", "tcp", "target:81", "connection refused"},
		{"未知网络", "sctp", "target:80", "unknown network"},
		{"缺少端口", "tcp", "target", "missing port"},
		{"地址族不符", "tcp6", ip4.String() + ":80", "address family mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, fd := n.Dial(cli, tt.network, tt.addr)
			assert.Equal(t, engine.StatusFailed, st)
			assert.Equal(t, -1, fd)
			assert.Contains(t, errmsg(n, cli), tt.want)
		})
	}
}

// TestNetwork_ListenerClosedByCaller 测试调用方关闭监听后端口可复用
func TestNetwork_ListenerClosedByCaller(t *testing.T) {
	n := NewNetwork()
	srv := newStarted(t, n, "reuse")
	cli := newStarted(t, n, "reuse-client")

	st, lnFd := n.Listen(srv, "tcp", ":9000")
	require.Equal(t, engine.StatusOK, st)

	st, _ = n.Listen(srv, "tcp", ":9000")
	assert.Equal(t, engine.StatusFailed, st)
	assert.Contains(t, errmsg(n, srv), "address already in use")

	require.NoError(t, unix.Close(lnFd))

	st, _ = n.Dial(cli, "tcp", "reuse:9000")
	assert.Equal(t, engine.StatusFailed, st)
	assert.Contains(t, errmsg(n, cli), "connection refused")

	st, lnFd = n.Listen(srv, "tcp", ":9000")
	require.Equal(t, engine.StatusOK, st, errmsg(n, srv))
	unix.Close(lnFd)
}

// TestNetwork_CloseWakesAccept 测试节点关闭后监听方读到 EOF
func TestNetwork_CloseWakesAccept(t *testing.T) {
	n := NewNetwork()
	h := n.New()
	st, lnFd := n.Listen(h, "tcp", ":80")
	require.Equal(t, engine.StatusOK, st)
	defer unix.Close(lnFd)

	require.Equal(t, engine.StatusOK, n.Close(h))

	_, err := fdpass.Receive(lnFd, 0)
	assert.ErrorIs(t, err, fdpass.ErrControlMessage)
}

// TestNetwork_GetRemoteAddrForeignConn 测试查询非本监听接受的连接
func TestNetwork_GetRemoteAddrForeignConn(t *testing.T) {
	n := NewNetwork()
	srv := newStarted(t, n, "foreign")
	cli := newStarted(t, n, "foreign-client")

	_, lnA := n.Listen(srv, "tcp", ":1")
	_, lnB := n.Listen(srv, "tcp", ":2")
	defer unix.Close(lnA)
	defer unix.Close(lnB)

	st, conn := n.Dial(cli, "tcp", "foreign:2")
	require.Equal(t, engine.StatusOK, st)
	defer unix.Close(conn)
	accepted, err := fdpass.Receive(lnB, 0)
	require.NoError(t, err)
	defer unix.Close(accepted)

	buf := make([]byte, 46)
	assert.Equal(t, int(unix.EBADF), n.GetRemoteAddr(lnA, accepted, buf))
	assert.Equal(t, int(unix.EBADF), n.GetRemoteAddr(lnB, conn, buf))
	assert.Equal(t, int(unix.ERANGE), n.GetRemoteAddr(lnB, accepted, make([]byte, 4)))
	assert.NotEmpty(t, errmsg(n, srv))
}

// TestNetwork_GetIPs 测试地址查询
func TestNetwork_GetIPs(t *testing.T) {
	n := NewNetwork()
	h := n.New()
	defer n.Close(h)

	buf := make([]byte, 64)
	require.Equal(t, engine.StatusOK, n.GetIPs(h, buf))
	assert.Empty(t, cstr(buf), "not started")

	require.Equal(t, engine.StatusOK, n.Up(h))
	require.Equal(t, engine.StatusOK, n.GetIPs(h, buf))
	ip4, ip6, _ := n.Addrs(h)
	assert.Equal(t, ip4.String()+","+ip6.String(), cstr(buf))

	assert.Equal(t, int(unix.ERANGE), n.GetIPs(h, make([]byte, 10)))
}

// TestNetwork_BlockUp 测试 Up 阻塞直到 Close
func TestNetwork_BlockUp(t *testing.T) {
	n := NewNetwork()
	n.BlockUp = true
	h := n.New()

	done := make(chan int, 1)
	go func() { done <- n.Up(h) }()

	require.Eventually(t, func() bool { return n.BlockedUps() == 1 }, 2*time.Second, time.Millisecond)
	select {
	case st := <-done:
		t.Fatalf("Up 在 Close 之前返回: %d", st)
	default:
	}

	n.Close(h)
	select {
	case st := <-done:
		assert.Equal(t, engine.StatusFailed, st)
	case <-time.After(2 * time.Second):
		t.Fatal("Close 未唤醒阻塞的 Up")
	}
	assert.Equal(t, 0, n.BlockedUps())
}
