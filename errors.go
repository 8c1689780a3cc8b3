package tailnet

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/dep2p/go-tailnet/internal/fdpass"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 配置错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidConfig 配置无效（所有 *ConfigError 都匹配此错误）
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNotRepresentable 字符串无法跨越引擎边界（含 NUL 或非 UTF-8）
	ErrNotRepresentable = errors.New("value not representable across the engine boundary")

	// ErrInvalidControlURL 控制面地址无效
	ErrInvalidControlURL = errors.New("invalid control URL")

	// ────────────────────────────────────────────────────────────────────────
	// 引擎错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrErrorRetrieval 获取引擎错误描述本身失败
	ErrErrorRetrieval = errors.New("error-retrieval failed")

	// ErrMalformedResult 引擎写入的结果缺少 NUL 结尾或无法解析
	ErrMalformedResult = errors.New("malformed engine result")

	// ErrNoEngine 没有可用的引擎实现
	ErrNoEngine = errors.New("no engine available: build with -tags libtailscale or pass WithEngine")

	// ────────────────────────────────────────────────────────────────────────
	// 接受连接错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrRecvmsg 接收交接消息的系统调用失败
	ErrRecvmsg = fdpass.ErrRecvmsg

	// ErrControlMessage 交接消息的辅助数据缺失或畸形
	ErrControlMessage = fdpass.ErrControlMessage

	// ErrNoPendingConnection 非阻塞接受时没有待处理的连接
	ErrNoPendingConnection = errors.New("no pending connection")

	// ────────────────────────────────────────────────────────────────────────
	// 使用错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrServerClosed Server 已关闭
	ErrServerClosed = errors.New("server closed")

	// ErrListenerClosed Listener 已关闭
	ErrListenerClosed = errors.New("listener closed")

	// ErrConnClosed Conn 已关闭
	ErrConnClosed = errors.New("connection closed")

	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedNetwork 不支持的网络类型
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// ════════════════════════════════════════════════════════════════════════════
//                              ConfigError
// ════════════════════════════════════════════════════════════════════════════

// ConfigError 配置字段被拒绝
//
// Err 为 ErrNotRepresentable、ErrInvalidControlURL，或引擎拒绝时的 *EngineError。
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tailnet: config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is 使所有配置错误匹配 ErrInvalidConfig
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// ════════════════════════════════════════════════════════════════════════════
//                              EngineError
// ════════════════════════════════════════════════════════════════════════════

// EngineError 引擎调用返回了非零状态
//
// Message 是引擎自己的错误描述。获取描述失败时 Message 为空，
// Err 为 ErrErrorRetrieval；结果畸形时 Err 为 ErrMalformedResult。
type EngineError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("tailnet: %s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("tailnet: %s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("tailnet: %s: %v (status %d)", e.Op, e.Err, e.Status)
	default:
		return fmt.Sprintf("tailnet: %s: status %d", e.Op, e.Status)
	}
}

// Unwrap 返回 Err 以及正数状态码对应的 syscall.Errno
func (e *EngineError) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Status > 0 {
		errs = append(errs, syscall.Errno(e.Status))
	}
	return errs
}

// ════════════════════════════════════════════════════════════════════════════
//                              AcceptError / IOError
// ════════════════════════════════════════════════════════════════════════════

// AcceptError 接受连接的本地传输故障
//
// Op 为 "recvmsg" 或 "controlmessage"。与引擎报告的状态无关。
type AcceptError struct {
	Op  string
	Err error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("tailnet: accept: %v", e.Err)
}

func (e *AcceptError) Unwrap() error { return e.Err }

// IOError 已建立连接上的读写失败
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("tailnet: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
