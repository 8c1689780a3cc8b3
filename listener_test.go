package tailnet

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/engine/enginetest"
)

// ============================================================================
//                              Accept
// ============================================================================

func TestListener_Accept(t *testing.T) {
	n := enginetest.NewNetwork()
	client, server, ln, _, _ := pair(t, n)

	assert.Equal(t, "tcp", ln.Network())
	assert.Equal(t, ":0", ln.Address())
	assert.False(t, ln.Funnel())
	assert.NotEqual(t, client.Fd(), server.Fd())

	_, err := server.Write([]byte("pong"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf))

	t.Log("✅ Accept 测试通过")
}

// TestListener_ConcurrentAccept 并发的拨号与接受，每个连接恰好被接受一次
func TestListener_ConcurrentAccept(t *testing.T) {
	const conns = 16

	n := enginetest.NewNetwork()
	srv := newTestServer(t, n, Config{Hostname: "busy-server"})
	cli := newTestServer(t, n, Config{Hostname: "busy-client"})
	ln, port := listenAny(t, n, srv)

	var (
		g        errgroup.Group
		mu       sync.Mutex
		accepted = make(map[string]bool)
	)

	for i := 0; i < conns; i++ {
		g.Go(func() error {
			c, err := ln.Accept()
			if err != nil {
				return err
			}
			defer c.Close()

			data, err := io.ReadAll(c)
			if err != nil {
				return err
			}
			mu.Lock()
			accepted[string(data)] = true
			mu.Unlock()
			return nil
		})
	}

	for i := 0; i < conns; i++ {
		g.Go(func() error {
			c, err := cli.Dial("tcp", hostPort("busy-server", port))
			if err != nil {
				return err
			}
			defer c.Close()
			if _, err := c.Write([]byte{'a' + byte(i)}); err != nil {
				return err
			}
			return c.CloseWrite()
		})
	}

	require.NoError(t, g.Wait())
	assert.Len(t, accepted, conns)

	t.Log("✅ 并发接受测试通过")
}

func TestListener_TryAccept(t *testing.T) {
	n := enginetest.NewNetwork()
	srv := newTestServer(t, n, Config{Hostname: "try-server"})
	cli := newTestServer(t, n, Config{Hostname: "try-client"})
	ln, port := listenAny(t, n, srv)

	_, err := ln.TryAccept()
	assert.ErrorIs(t, err, ErrNoPendingConnection)

	c, err := cli.Dial("tcp", hostPort("try-server", port))
	require.NoError(t, err)
	defer c.Close()

	a, err := ln.TryAccept()
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, DirInbound, a.Direction())

	t.Log("✅ 非阻塞接受测试通过")
}

// TestListener_CloseWakesAccept 关闭 Listener 唤醒阻塞中的 Accept
func TestListener_CloseWakesAccept(t *testing.T) {
	n := enginetest.NewNetwork()
	srv := newTestServer(t, n, Config{})
	ln, err := srv.Listen("tcp", ":0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ln.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrListenerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Close 未唤醒 Accept")
	}

	_, err = ln.Accept()
	assert.ErrorIs(t, err, ErrListenerClosed)
	assert.Equal(t, -1, ln.Fd())
	require.NoError(t, ln.Close(), "重复关闭无副作用")

	t.Log("✅ 关闭唤醒 Accept 测试通过")
}

// TestListener_CloseKeepsConns 已接受的连接在 Listener 关闭后仍可用
func TestListener_CloseKeepsConns(t *testing.T) {
	n := enginetest.NewNetwork()
	client, server, ln, _, _ := pair(t, n)

	require.NoError(t, ln.Close())

	_, err := client.Write([]byte("still here"))
	require.NoError(t, err)
	buf := make([]byte, len("still here"))
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(buf))

	t.Log("✅ 关闭监听不影响连接测试通过")
}

// TestListener_AcceptWithoutRights 交接消息缺少描述符时报告传输故障
func TestListener_AcceptWithoutRights(t *testing.T) {
	n := enginetest.NewNetwork()
	srv := newTestServer(t, n, Config{})

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	ln := newListener(srv, fds[0], "tcp", ":0", false)
	defer ln.Close()

	_, err = unix.Write(fds[1], []byte("no rights"))
	require.NoError(t, err)

	_, err = ln.Accept()
	var ae *AcceptError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "controlmessage", ae.Op)
	assert.ErrorIs(t, err, ErrControlMessage)

	t.Log("✅ 缺少辅助数据测试通过")
}

// TestListener_AcceptRecvmsgFailure recvmsg 本身失败时报告传输故障
func TestListener_AcceptRecvmsgFailure(t *testing.T) {
	n := enginetest.NewNetwork()
	srv := newTestServer(t, n, Config{})

	// 普通管道上的 recvmsg 返回 ENOTSOCK
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
	defer unix.Close(p[1])

	ln := newListener(srv, p[0], "tcp", ":0", false)
	defer ln.Close()

	_, err := ln.Accept()
	var ae *AcceptError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "recvmsg", ae.Op)
	assert.ErrorIs(t, err, ErrRecvmsg)

	t.Log("✅ recvmsg 失败测试通过")
}

// ============================================================================
//                              对端地址
// ============================================================================

func TestListener_RemoteAddr(t *testing.T) {
	n := enginetest.NewNetwork()
	_, server, ln, _, cli := pair(t, n)

	addr, err := ln.RemoteAddr(server)
	require.NoError(t, err)

	ip4, _, ok := n.Addrs(cli.h)
	require.True(t, ok)
	assert.Equal(t, ip4, addr)

	t.Log("✅ 对端地址测试通过")
}

// TestListener_RemoteAddrForeignConn 不是由该 Listener 接受的连接报告引擎错误
func TestListener_RemoteAddrForeignConn(t *testing.T) {
	n := enginetest.NewNetwork()
	client, _, ln, _, _ := pair(t, n)

	_, err := ln.RemoteAddr(client)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "getremoteaddr", ee.Op)
	assert.NotEmpty(t, ee.Message)

	t.Log("✅ 外来连接对端地址测试通过")
}

// TestServer_RemoteAddrOtherServer 监听属于另一个节点时拒绝查询，
// 错误描述不会取自调用方节点上无关的旧错误
func TestServer_RemoteAddrOtherServer(t *testing.T) {
	n := enginetest.NewNetwork()
	client, server, ln, srv, cli := pair(t, n)

	_, err := cli.Dial("tcp", "no-such-host:80")
	require.Error(t, err)

	_, err = cli.RemoteAddr(server, ln)
	require.ErrorIs(t, err, ErrInvalidArgument)
	var ee *EngineError
	assert.False(t, errors.As(err, &ee))
	assert.NotContains(t, err.Error(), "no-such-host")

	// 监听所属节点上的旧错误同样不会混入
	_, err = srv.Dial("tcp", "no-such-host:80")
	require.Error(t, err)
	_, err = srv.RemoteAddr(client, ln)
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "getremoteaddr", ee.Op)
	assert.NotContains(t, ee.Message, "no-such-host")

	t.Log("✅ 跨节点对端地址测试通过")
}

func TestListener_RemoteAddrClosed(t *testing.T) {
	n := enginetest.NewNetwork()
	_, server, ln, srv, _ := pair(t, n)

	require.NoError(t, server.Close())
	_, err := ln.RemoteAddr(server)
	assert.ErrorIs(t, err, ErrConnClosed)

	require.NoError(t, ln.Close())
	_, err = srv.RemoteAddr(server, ln)
	assert.ErrorIs(t, err, ErrListenerClosed)

	_, err = srv.RemoteAddr(nil, ln)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	t.Log("✅ 已关闭描述符对端地址测试通过")
}

// ============================================================================
//                              Funnel
// ============================================================================

func TestListener_Funnel(t *testing.T) {
	n := enginetest.NewNetwork()
	srv := newTestServer(t, n, Config{Hostname: "public"})

	ln, err := srv.ListenFunnel("tcp", ":443", true)
	require.NoError(t, err)
	defer ln.Close()
	assert.True(t, ln.Funnel())

	_, err = srv.ListenFunnel("udp", ":443", false)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "listen_funnel", ee.Op)

	_, err = srv.Listen("tcp", ":443")
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Message, "address already in use")

	t.Log("✅ Funnel 监听测试通过")
}
