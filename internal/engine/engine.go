// Package engine 定义与外部网络引擎之间固定的调用面
//
// 引擎是单独编译的外部库（libtailscale），只通过一组 C 可调用函数访问。
// Engine 接口与这些函数一一对应，不做任何语义上的加工：
//   - 返回值为状态码，0 表示成功，非 0 表示失败（随后调用 ErrMsg 获取详情）
//   - 字符串输出写入调用方提供的缓冲区，引擎不会越过 len(buf) 写入，并以 NUL 结尾
//   - 字符串输入由调用方保证不含 NUL
//
// 接受连接不属于调用面：引擎通过监听描述符上的辅助数据消息推送连接，
// 见 internal/fdpass。
package engine

//go:generate mockgen -destination=enginetest/mock_engine.go -package=enginetest github.com/dep2p/go-tailnet/internal/engine Engine

// Handle 引擎实例句柄（不透明）
type Handle int

// 状态码
const (
	// StatusOK 成功
	StatusOK = 0

	// StatusFailed 通用失败，详情见 ErrMsg
	StatusFailed = -1
)

// 缓冲区大小约定
const (
	// CredentialSize 凭据缓冲区大小：32 字节数据 + NUL
	CredentialSize = 33
)

// Engine 外部引擎调用面
type Engine interface {
	// ════════════════════════════════════════════════════════════════════
	// 生命周期
	// ════════════════════════════════════════════════════════════════════

	// New 创建引擎实例，此时不建立任何网络连接
	New() Handle

	// Start 连接到网络，不等待可用
	Start(h Handle) int

	// Up 连接到网络并阻塞直到可用，只能通过 Close 取消
	Up(h Handle) int

	// Close 释放引擎实例
	Close(h Handle) int

	// ════════════════════════════════════════════════════════════════════
	// 配置（仅启动前有效）
	// ════════════════════════════════════════════════════════════════════

	SetDir(h Handle, dir string) int
	SetHostname(h Handle, hostname string) int
	SetAuthKey(h Handle, authKey string) int
	SetControlURL(h Handle, controlURL string) int
	SetEphemeral(h Handle, ephemeral bool) int

	// SetLogFD 日志输出描述符，-1 表示丢弃
	SetLogFD(h Handle, fd int) int

	// ════════════════════════════════════════════════════════════════════
	// 诊断
	// ════════════════════════════════════════════════════════════════════

	// ErrMsg 写入最近一次错误的描述
	ErrMsg(h Handle, buf []byte) int

	// ════════════════════════════════════════════════════════════════════
	// 数据面
	// ════════════════════════════════════════════════════════════════════

	// Dial 建立出站连接，成功时返回连接描述符（所有权归调用方）
	Dial(h Handle, network, addr string) (status int, connFd int)

	// Listen 创建监听，成功时返回交接通道描述符（所有权归调用方）
	Listen(h Handle, network, addr string) (status int, listenerFd int)

	// ListenFunnel 在公网（Funnel）上监听
	ListenFunnel(h Handle, network, addr string, funnelOnly bool) (status int, listenerFd int)

	// GetRemoteAddr 查询某监听器上接受的连接的对端 IP
	GetRemoteAddr(listenerFd, connFd int, buf []byte) int

	// GetIPs 查询本节点的 IP 列表（逗号分隔）
	GetIPs(h Handle, buf []byte) int

	// CertDomains 查询可签发证书的域名列表（逗号分隔）
	CertDomains(h Handle, buf []byte) int

	// ════════════════════════════════════════════════════════════════════
	// 辅助功能
	// ════════════════════════════════════════════════════════════════════

	// Loopback 启动本地回环服务（SOCKS5 代理 + LocalAPI）
	//
	// proxyCred 与 localAPICred 的长度必须为 CredentialSize。
	Loopback(h Handle, addr, proxyCred, localAPICred []byte) int

	// EnableFunnelToLocalhostPlaintextHTTP1 通过 Funnel 公开节点，
	// TLS 在节点终止后以明文 HTTP/1 转发到本机 port
	EnableFunnelToLocalhostPlaintextHTTP1(h Handle, port int) int
}
