// Package fdutil 提供原始文件描述符的所有权封装
//
// Owner 是每类资源唯一的所有者包装：
//   - 每次系统调用在读锁内执行，描述符不会在调用中途被关闭
//   - Close 先 shutdown(2) 唤醒阻塞中的调用，再在写锁内 close(2)
//   - close(2) 恰好执行一次，之后的使用返回 ErrClosed
package fdutil

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ErrClosed 描述符已释放
var ErrClosed = errors.New("descriptor closed")

// Owner 独占一个文件描述符
type Owner struct {
	fd     int
	mu     sync.RWMutex
	closed atomic.Bool
}

// NewOwner 接管 fd 的所有权
//
// fd 必须是调用方独占的有效描述符，接管后调用方不得再关闭它。
// 未调用 Close 的 Owner 被回收时由终结器释放描述符。
func NewOwner(fd int) *Owner {
	if fd < 0 {
		panic("fdutil: negative descriptor")
	}
	o := &Owner{fd: fd}
	runtime.SetFinalizer(o, (*Owner).Close)
	return o
}

// Fd 返回描述符数值（仅供查询、轮询使用，不转移所有权）
//
// 关闭后返回 -1。
func (o *Owner) Fd() int {
	if o.closed.Load() {
		return -1
	}
	return o.fd
}

// Closed 是否已关闭
func (o *Owner) Closed() bool {
	return o.closed.Load()
}

// Do 在持有读锁的情况下以描述符调用 fn
//
// 已关闭时返回 ErrClosed，fn 不会被调用。
func (o *Owner) Do(fn func(fd int) error) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed.Load() {
		return ErrClosed
	}
	return fn(o.fd)
}

// Shutdown 对描述符执行 shutdown(2)
//
// 非套接字描述符返回 ENOTSOCK，由调用方决定是否忽略。
func (o *Owner) Shutdown(how int) error {
	return o.Do(func(fd int) error {
		return IgnoringEINTR(func() error { return unix.Shutdown(fd, how) })
	})
}

// Close 释放描述符，恰好执行一次
//
// 第二次及之后的调用直接返回 nil。
func (o *Owner) Close() error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(o, nil)

	// 唤醒阻塞在 recvmsg/read 上的调用，随后等待它们退出
	_ = unix.Shutdown(o.fd, unix.SHUT_RDWR)

	o.mu.Lock()
	defer o.mu.Unlock()

	// close(2) 即使返回 EINTR 描述符也已释放，不能重试
	err := unix.Close(o.fd)
	if err == unix.EINTR {
		err = nil
	}
	return err
}

// IgnoringEINTR 在 EINTR 时重试 fn
func IgnoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}
