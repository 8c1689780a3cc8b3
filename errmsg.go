package tailnet

import (
	"bytes"
	"fmt"
	"syscall"

	"github.com/dep2p/go-tailnet/internal/engine"
)

// errMsgBufSize 错误描述缓冲区大小，更长的描述由引擎截断
const errMsgBufSize = 1024

// errMsg 获取引擎最近一次错误的描述
//
// 引擎返回 ERANGE 表示描述被截断，截断后的文本仍以 NUL 结尾，照常使用。
// 其他非零状态或缺少 NUL 时返回 ErrErrorRetrieval，从不返回空字符串替代。
func (s *Server) errMsg() (string, error) {
	buf := make([]byte, errMsgBufSize)
	switch st := s.eng.ErrMsg(s.h, buf); st {
	case engine.StatusOK, int(syscall.ERANGE):
	default:
		return "", fmt.Errorf("%w: errmsg returned status %d", ErrErrorRetrieval, st)
	}

	msg, ok := cString(buf)
	if !ok {
		return "", fmt.Errorf("%w: message is not NUL-terminated", ErrErrorRetrieval)
	}
	return msg, nil
}

// engineError 为非零状态获取错误描述并构造 *EngineError
//
// 每个非零状态都配有非空的描述：引擎没有给出文本时，正数状态使用
// 对应的 errno 文本。
func (s *Server) engineError(op string, status int) *EngineError {
	s.metrics.EngineError(op)

	msg, err := s.errMsg()
	e := &EngineError{Op: op, Status: status, Message: msg, Err: err}
	if e.Message == "" && e.Err == nil {
		if status > 0 {
			e.Message = syscall.Errno(status).Error()
		} else {
			e.Message = fmt.Sprintf("engine returned status %d without a message", status)
		}
	}

	s.log.Warn("引擎调用失败", "op", op, "status", status, "error", e.Message)
	return e
}

// malformed 引擎写入了无法使用的结果
func (s *Server) malformed(op, detail string) *EngineError {
	s.metrics.EngineError(op)
	return &EngineError{Op: op, Message: detail, Err: ErrMalformedResult}
}

// cString 截取 buf 中 NUL 之前的内容，没有 NUL 时 ok 为 false
func cString(buf []byte) (string, bool) {
	i := bytes.IndexByte(buf, 0)
	if i < 0 {
		return "", false
	}
	return string(buf[:i]), true
}
