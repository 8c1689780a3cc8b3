package tailnet

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-tailnet/internal/engine"
	"github.com/dep2p/go-tailnet/internal/metrics"
	"github.com/dep2p/go-tailnet/internal/util/logger"
)

var log = logger.Logger("tailnet")

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// ServerState 节点生命周期状态
type ServerState int32

const (
	// StateNotStarted 已创建，引擎未启动
	StateNotStarted ServerState = iota

	// StateStarting 正在启动（首个 Start/Up/Dial/Listen 进行中）
	StateStarting

	// StateStarted 引擎已启动
	StateStarted

	// StateClosed 已关闭，引擎实例已释放
	StateClosed
)

// String 返回状态的字符串表示
func (s ServerState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Server
// ════════════════════════════════════════════════════════════════════════════

// Server 覆盖网络节点，独占一个引擎实例
//
// Server 不可复制。引擎实例在 Close 中恰好释放一次；未关闭即被回收的
// Server 由终结器释放。
type Server struct {
	eng engine.Engine
	h   engine.Handle

	hostname string
	log      *slog.Logger
	metrics  *metrics.Collector

	// 状态
	state   atomic.Int32
	startMu sync.Mutex // 串行化隐式启动
	closed  atomic.Bool

	// 日志管道（可为 nil）
	sink *logSink
}

// New 创建节点并应用配置
//
// 配置先整体校验，再按固定顺序交给引擎。任何一步失败都会释放已创建的
// 引擎实例后返回错误。New 不连接网络；首次 Start、Up、Dial 或 Listen
// 时引擎才会启动。
func New(cfg Config, opts ...Option) (*Server, error) {
	o := options{}
	if err := o.apply(opts...); err != nil {
		return nil, fmt.Errorf("apply options: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng := o.engine
	if eng == nil {
		eng = defaultEngine()
	}
	if eng == nil {
		return nil, ErrNoEngine
	}

	l := o.logger
	if l == nil {
		l = log
	}

	m, err := metrics.New(o.registerer)
	if err != nil {
		return nil, err
	}

	s := &Server{
		eng:      eng,
		h:        eng.New(),
		hostname: cfg.Hostname,
		log:      l,
		metrics:  m,
	}

	if err := s.applyConfig(cfg); err != nil {
		s.closed.Store(true)
		s.state.Store(int32(StateClosed))
		_ = s.release()
		return nil, err
	}

	runtime.SetFinalizer(s, (*Server).finalize)
	s.log.Info("节点已创建", "handle", int(s.h), "config", cfg.String())
	return s, nil
}

// applyConfig 按固定顺序应用配置，遇到第一个失败即停止
func (s *Server) applyConfig(cfg Config) error {
	type step struct {
		field string
		op    string
		set   bool
		call  func() (int, error)
	}

	steps := []step{
		{"dir", "set_dir", cfg.Dir != "", func() (int, error) {
			dir, err := filepath.Abs(cfg.Dir)
			if err != nil {
				return 0, err
			}
			return s.eng.SetDir(s.h, dir), nil
		}},
		{"hostname", "set_hostname", cfg.Hostname != "", func() (int, error) {
			return s.eng.SetHostname(s.h, cfg.Hostname), nil
		}},
		{"authkey", "set_authkey", cfg.AuthKey != "", func() (int, error) {
			return s.eng.SetAuthKey(s.h, cfg.AuthKey), nil
		}},
		{"control_url", "set_control_url", cfg.ControlURL != "", func() (int, error) {
			return s.eng.SetControlURL(s.h, cfg.ControlURL), nil
		}},
		{"ephemeral", "set_ephemeral", cfg.Ephemeral, func() (int, error) {
			return s.eng.SetEphemeral(s.h, true), nil
		}},
		{"logsink", "set_logfd", cfg.LogSink != nil, func() (int, error) {
			sink, err := openLogSink(cfg.LogSink)
			if err != nil {
				return 0, err
			}
			s.sink = sink
			return s.eng.SetLogFD(s.h, sink.fd), nil
		}},
	}

	for _, st := range steps {
		if !st.set {
			continue
		}
		status, err := st.call()
		if err != nil {
			return &ConfigError{Field: st.field, Err: err}
		}
		if status != engine.StatusOK {
			return &ConfigError{Field: st.field, Err: s.engineError(st.op, status)}
		}
	}
	return nil
}

// State 返回当前生命周期状态
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

// String 返回节点的简要描述
func (s *Server) String() string {
	return fmt.Sprintf("Server{handle=%d hostname=%q state=%s}", int(s.h), s.hostname, s.State())
}

