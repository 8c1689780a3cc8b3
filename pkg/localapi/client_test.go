package localapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tailnet "github.com/dep2p/go-tailnet"
	"github.com/dep2p/go-tailnet/internal/engine/enginetest"
	"github.com/dep2p/go-tailnet/internal/util/logger"
)

// newLoopback 在模拟网络上创建节点并启动回环服务
func newLoopback(t *testing.T, n *enginetest.Network, hostname string) (*tailnet.Server, tailnet.LoopbackInfo) {
	t.Helper()
	srv, err := tailnet.New(tailnet.Config{Hostname: hostname, ControlURL: "https://control.example.com"},
		tailnet.WithEngine(n), tailnet.WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	info, err := srv.Loopback()
	require.NoError(t, err)
	return srv, info
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ============================================================================
//                              LocalAPI
// ============================================================================

func TestClient_Status(t *testing.T) {
	n := enginetest.NewNetwork()
	_, info := newLoopback(t, n, "api-node")

	c := NewClient(info.Addr, info.LocalAPICred)
	st, err := c.Status(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, "Running", st.BackendState)
	require.NotNil(t, st.Self)
	assert.Equal(t, "api-node", st.Self.HostName)
	assert.Equal(t, "api-node."+enginetest.Domain+".", st.Self.DNSName)
	assert.Len(t, st.Self.TailscaleIPs, 2)

	t.Log("✅ 状态查询测试通过")
}

func TestClient_Prefs(t *testing.T) {
	n := enginetest.NewNetwork()
	_, info := newLoopback(t, n, "prefs-node")

	raw, err := NewClient(info.Addr, info.LocalAPICred).Prefs(testContext(t))
	require.NoError(t, err)

	var prefs struct {
		ControlURL  string
		WantRunning bool
	}
	require.NoError(t, json.Unmarshal(raw, &prefs))
	assert.Equal(t, "https://control.example.com", prefs.ControlURL)
	assert.True(t, prefs.WantRunning)

	t.Log("✅ 偏好查询测试通过")
}

func TestClient_WrongCredential(t *testing.T) {
	n := enginetest.NewNetwork()
	_, info := newLoopback(t, n, "locked-node")

	_, err := NewClient(info.Addr, "wrong").Status(testContext(t))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "status", se.Endpoint)

	t.Log("✅ 错误凭据测试通过")
}

func TestClient_Request(t *testing.T) {
	var got *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer ts.Close()

	c := NewClient(strings.TrimPrefix(ts.URL, "http://"), "secret", WithHTTPClient(ts.Client()))
	body, err := c.Do(testContext(t), http.MethodPost, "/debug", strings.NewReader("x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/localapi/v0/debug", got.URL.Path)
	assert.Equal(t, "localapi", got.Header.Get("Sec-Tailscale"))
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Empty(t, user)
	assert.Equal(t, "secret", pass)

	_, err = c.Do(testContext(t), http.MethodGet, "", nil)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
	_, err = c.Do(testContext(t), http.MethodGet, "status?x=1", nil)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	t.Log("✅ 请求格式测试通过")
}

func TestClient_StatusErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not running", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(strings.TrimPrefix(ts.URL, "http://"), "x")
	_, err := c.Status(testContext(t))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "localapi: status: HTTP 503: not running", se.Error())

	t.Log("✅ 错误响应测试通过")
}

// ============================================================================
//                              SOCKS5 代理
// ============================================================================

// TestProxyDialer 经回环代理按主机名连接覆盖网络上的监听
func TestProxyDialer(t *testing.T) {
	n := enginetest.NewNetwork()
	_, info := newLoopback(t, n, "proxy-client")

	target, err := tailnet.New(tailnet.Config{Hostname: "proxy-target"},
		tailnet.WithEngine(n), tailnet.WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer target.Close()

	ln, err := target.Listen("tcp", ":7000")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	d, err := ProxyDialer(info.Addr, info.ProxyCred)
	require.NoError(t, err)

	conn, err := d.DialContext(testContext(t), "tcp", "proxy-target:7000")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	t.Log("✅ SOCKS5 代理测试通过")
}

func TestProxyDialer_WrongCredential(t *testing.T) {
	n := enginetest.NewNetwork()
	_, info := newLoopback(t, n, "proxy-locked")

	d, err := ProxyDialer(info.Addr, "wrong")
	require.NoError(t, err)

	_, err = d.DialContext(testContext(t), "tcp", "proxy-locked:1")
	assert.Error(t, err)

	t.Log("✅ 代理凭据测试通过")
}

func TestProxyHTTPClient(t *testing.T) {
	n := enginetest.NewNetwork()
	_, info := newLoopback(t, n, "web-client")

	web, err := tailnet.New(tailnet.Config{Hostname: "web"},
		tailnet.WithEngine(n), tailnet.WithLogger(logger.Discard()))
	require.NoError(t, err)
	defer web.Close()

	ln, err := web.Listen("tcp", ":80")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello")
	}()

	hc, err := ProxyHTTPClient(info.Addr, info.ProxyCred)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(testContext(t), http.MethodGet, "http://web/", nil)
	require.NoError(t, err)
	resp, err := hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))

	t.Log("✅ 代理 HTTP 客户端测试通过")
}
