package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dep2p/go-tailnet/internal/util/logger"
)

var log = logger.Logger("tailnet/localapi")

const (
	// headerName LocalAPI 请求必须携带的头
	headerName = "Sec-Tailscale"

	// headerValue headerName 的取值
	headerValue = "localapi"

	// pathPrefix LocalAPI 路径前缀
	pathPrefix = "/localapi/v0/"

	// maxBodySize 响应体上限
	maxBodySize = 4 << 20

	// DefaultTimeout 默认请求超时
	DefaultTimeout = 30 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              错误
// ════════════════════════════════════════════════════════════════════════════

// ErrInvalidEndpoint 端点名称无效
var ErrInvalidEndpoint = errors.New("invalid LocalAPI endpoint")

// StatusError LocalAPI 返回了非 2xx 响应
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("localapi: %s: HTTP %d: %s", e.Endpoint, e.Code, strings.TrimSpace(e.Body))
}

// ════════════════════════════════════════════════════════════════════════════
//                              Client
// ════════════════════════════════════════════════════════════════════════════

// Client LocalAPI 客户端，并发安全
type Client struct {
	base string
	cred string
	hc   *http.Client
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// NewClient 创建访问 addr（host:port）上 LocalAPI 的客户端
func NewClient(addr, cred string, opts ...Option) *Client {
	c := &Client{
		base: "http://" + addr,
		cred: cred,
		hc:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do 调用 endpoint（如 "status"），返回响应体
//
// 非 2xx 响应返回 *StatusError。
func (c *Client) Do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	endpoint = strings.TrimPrefix(endpoint, "/")
	if endpoint == "" || strings.ContainsAny(endpoint, "?#") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+pathPrefix+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("localapi: build request: %w", err)
	}
	req.Header.Set(headerName, headerValue)
	req.SetBasicAuth("", c.cred)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("localapi: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("localapi: %s: read body: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug("LocalAPI 请求失败", "endpoint", endpoint, "code", resp.StatusCode)
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              常用端点
// ════════════════════════════════════════════════════════════════════════════

// Status 节点状态（只包含常用字段）
type Status struct {
	// BackendState 后端状态，如 "Running"、"NeedsLogin"
	BackendState string `json:"BackendState"`

	// Self 本节点信息
	Self *PeerStatus `json:"Self"`
}

// PeerStatus 单个节点的状态
type PeerStatus struct {
	HostName     string   `json:"HostName"`
	DNSName      string   `json:"DNSName"`
	TailscaleIPs []string `json:"TailscaleIPs"`
}

// Status 获取节点状态
func (c *Client) Status(ctx context.Context) (*Status, error) {
	data, err := c.Do(ctx, http.MethodGet, "status", nil)
	if err != nil {
		return nil, err
	}
	st := &Status{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("localapi: decode status: %w", err)
	}
	return st, nil
}

// Prefs 获取节点偏好设置（原始 JSON）
func (c *Client) Prefs(ctx context.Context) (json.RawMessage, error) {
	data, err := c.Do(ctx, http.MethodGet, "prefs", nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("localapi: prefs: response is not JSON")
	}
	return json.RawMessage(data), nil
}
