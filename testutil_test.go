package tailnet

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tailnet/internal/engine/enginetest"
	"github.com/dep2p/go-tailnet/internal/util/logger"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// newTestServer 在模拟网络上创建节点，测试结束时关闭
func newTestServer(t *testing.T, n *enginetest.Network, cfg Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithEngine(n), WithLogger(logger.Discard())}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// listenAny 在随机端口上监听，返回监听与端口
func listenAny(t *testing.T, n *enginetest.Network, s *Server) (*Listener, int) {
	t.Helper()
	ln, err := s.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	port, ok := n.ListenerPort(ln.Fd())
	require.True(t, ok)
	return ln, port
}

// hostPort 拼接 host:port
func hostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

// pair 建立一条 client → server 的连接，返回两端
func pair(t *testing.T, n *enginetest.Network) (client, server *Conn, ln *Listener, srv, cli *Server) {
	t.Helper()
	srv = newTestServer(t, n, Config{Hostname: "pair-server", Ephemeral: true})
	cli = newTestServer(t, n, Config{Hostname: "pair-client", Ephemeral: true})

	ln, port := listenAny(t, n, srv)

	client, err := cli.Dial("tcp", hostPort("pair-server", port))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	server, err = ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return client, server, ln, srv, cli
}
