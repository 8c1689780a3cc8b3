package tailnet

import (
	"runtime"
	"syscall"

	"go.uber.org/multierr"

	"github.com/dep2p/go-tailnet/internal/engine"
)

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期管理
// ════════════════════════════════════════════════════════════════════════════

// Start 将节点连接到网络，不等待可用
//
// Start 是可选的：首次 Dial 或 Listen 会隐式启动。可以重复调用，
// 每次调用都会到达引擎。
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	return s.startLocked()
}

// ensureStarted 首次使用时隐式启动
//
// 已启动时不加锁直接返回；并发的首次使用者在 startMu 上串行，
// 引擎只看到一次隐式启动。
func (s *Server) ensureStarted() error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if s.State() == StateStarted {
		return nil
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.State() == StateStarted {
		return nil
	}
	return s.startLocked()
}

func (s *Server) startLocked() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	s.transition(StateNotStarted, StateStarting)
	s.log.Debug("正在启动节点", "handle", int(s.h))

	if st := s.eng.Start(s.h); st != engine.StatusOK {
		s.transition(StateStarting, StateNotStarted)
		return s.engineError("start", st)
	}

	if s.transition(StateStarting, StateStarted) {
		s.log.Info("节点已启动", "handle", int(s.h))
	}
	return nil
}

// Up 将节点连接到网络并阻塞直到可用
//
// Up 不持有任何锁。唯一的取消方式是在另一个 goroutine 中调用 Close，
// 此时 Up 返回的 *EngineError 匹配 ErrServerClosed。
func (s *Server) Up() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	s.transition(StateNotStarted, StateStarting)
	s.log.Info("正在等待节点可用", "handle", int(s.h))

	st := s.eng.Up(s.h)
	if st != engine.StatusOK {
		if s.closed.Load() {
			// 引擎实例已释放，无法再获取错误描述
			return &EngineError{Op: "up", Status: st, Message: "canceled by Close", Err: ErrServerClosed}
		}
		s.transition(StateStarting, StateNotStarted)
		return s.engineError("up", st)
	}

	if s.transition(StateStarting, StateStarted) || s.transition(StateNotStarted, StateStarted) {
		s.log.Info("节点已可用", "handle", int(s.h))
	}
	return nil
}

// Close 关闭节点并释放引擎实例
//
// 引擎实例恰好释放一次，重复调用无副作用。Close 不能与进行中的
// Dial、Listen、Accept 并发；可以与 Up 并发以取消它。
// 已创建的 Listener 与 Conn 不受影响，需要各自关闭。
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(s, nil)
	s.state.Store(int32(StateClosed))

	s.log.Info("正在关闭节点", "handle", int(s.h))
	err := s.release()
	if err != nil {
		s.log.Warn("关闭节点时出错", "handle", int(s.h), "error", err)
	}
	return err
}

// release 释放引擎实例，然后关闭日志管道
func (s *Server) release() error {
	var err error
	if st := s.eng.Close(s.h); st != engine.StatusOK {
		msg := "engine failed to shut down cleanly, see engine log"
		if st > 0 {
			msg = syscall.Errno(st).Error()
		}
		s.metrics.EngineError("close")
		err = multierr.Append(err, &EngineError{Op: "close", Status: st, Message: msg})
	}
	err = multierr.Append(err, s.sink.Close())
	return err
}

// finalize 释放未关闭即被回收的节点
func (s *Server) finalize() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.state.Store(int32(StateClosed))
	log.Warn("节点未关闭即被回收", "handle", int(s.h))
	_ = s.release()
}

// transition 状态迁移（CAS），已关闭的节点不会离开 StateClosed
func (s *Server) transition(from, to ServerState) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}
