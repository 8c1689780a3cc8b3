package tailnet

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dep2p/go-tailnet/internal/util/logger"
)

// engineLogger 引擎自身日志的默认去向
var engineLogger = logger.Logger("tailnet/engine")

// maxLogLine 单行日志上限，超出部分按多行输出
const maxLogLine = 64 << 10

// ════════════════════════════════════════════════════════════════════════════
//                              LogTo
// ════════════════════════════════════════════════════════════════════════════

// LogTo 返回把引擎日志逐行写入 l 的 LogSink
//
// 每一行作为一条 Info 记录，不含换行符。
func LogTo(l *slog.Logger) io.Writer {
	if l == nil {
		l = engineLogger
	}
	return &lineWriter{log: l}
}

type lineWriter struct {
	mu  sync.Mutex
	log *slog.Logger
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= maxLogLine {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

// Flush 输出缓冲中不完整的最后一行
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	w.log.Info(string(line))
}

// ════════════════════════════════════════════════════════════════════════════
//                              日志描述符
// ════════════════════════════════════════════════════════════════════════════

// logSink 交给引擎的日志描述符
type logSink struct {
	fd   int
	file *os.File // 保持引用，防止描述符被终结器关闭
	pipe bool
}

// openLogSink 为 w 准备引擎可写入的描述符
//
// 通用 io.Writer 经 os.Pipe 转发：写端交给引擎，读端由后台 goroutine
// 拷贝到 w，直到写端在 Server 关闭时被关闭。
func openLogSink(w io.Writer) (*logSink, error) {
	switch w := w.(type) {
	case discardLogs:
		return &logSink{fd: -1}, nil
	case *os.File:
		return &logSink{fd: int(w.Fd()), file: w}, nil
	}

	r, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	go pumpLogs(r, w)
	return &logSink{fd: int(pw.Fd()), file: pw, pipe: true}, nil
}

func pumpLogs(r *os.File, w io.Writer) {
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		log.Debug("引擎日志转发结束", "error", err)
	}
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
}

// Close 关闭管道写端；调用方提供的 *os.File 不归本包所有
func (ls *logSink) Close() error {
	if ls == nil || !ls.pipe {
		return nil
	}
	return ls.file.Close()
}

func logSinkKind(w io.Writer) string {
	switch w.(type) {
	case discardLogs:
		return "discard"
	case *os.File:
		return "file"
	default:
		return "writer"
	}
}
