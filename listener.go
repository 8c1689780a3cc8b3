package tailnet

import (
	"errors"
	"fmt"
	"net/netip"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/fdpass"
	"github.com/dep2p/go-tailnet/internal/fdutil"
)

// Listener 覆盖网络上的监听
//
// Listener 持有交接通道的调用方一端：引擎每接受一个连接，就在通道上
// 发送一条携带该连接描述符的辅助数据消息。Accept 每次取出一条消息，
// 顺序即内核排队的顺序。未关闭即被回收的 Listener 由终结器释放描述符。
type Listener struct {
	fd      *fdutil.Owner
	id      uuid.UUID
	network string
	address string
	funnel  bool

	srv    *Server
	closed atomic.Bool
}

func newListener(s *Server, fd int, network, address string, funnel bool) *Listener {
	s.metrics.ListenerOpened()
	l := &Listener{
		fd:      fdutil.NewOwner(fd),
		id:      uuid.New(),
		network: network,
		address: address,
		funnel:  funnel,
		srv:     s,
	}
	runtime.SetFinalizer(l, (*Listener).finalize)
	return l
}

// Accept 阻塞直到有连接到达
//
// 返回的 Conn 独占新收到的描述符；Listener 可以继续 Accept。
// 辅助数据缺失或畸形时返回 *AcceptError，不会重试。
// Listener 在阻塞期间被关闭时返回 ErrListenerClosed。
func (l *Listener) Accept() (*Conn, error) {
	return l.accept(0)
}

// TryAccept 非阻塞地接受一个连接
//
// 没有待处理的连接时返回 ErrNoPendingConnection。
func (l *Listener) TryAccept() (*Conn, error) {
	return l.accept(unix.MSG_DONTWAIT)
}

func (l *Listener) accept(flags int) (*Conn, error) {
	connFd := -1
	err := l.fd.Do(func(fd int) error {
		var rerr error
		connFd, rerr = fdpass.Receive(fd, flags)
		return rerr
	})

	switch {
	case err == nil:
	case errors.Is(err, fdutil.ErrClosed):
		return nil, ErrListenerClosed
	case errors.Is(err, fdpass.ErrWouldBlock):
		return nil, ErrNoPendingConnection
	case l.fd.Closed():
		// Close 的 shutdown(2) 唤醒了阻塞中的 recvmsg
		return nil, ErrListenerClosed
	case errors.Is(err, fdpass.ErrRecvmsg):
		l.srv.metrics.Accept(err)
		return nil, &AcceptError{Op: "recvmsg", Err: err}
	default:
		l.srv.metrics.Accept(err)
		return nil, &AcceptError{Op: "controlmessage", Err: err}
	}

	c := newConn(l.srv, connFd, DirInbound, l.network, "")
	l.srv.metrics.Accept(nil)
	l.srv.log.Debug("已接受入站连接", "listener", l.id, "conn", c.ID())
	return c, nil
}

// RemoteAddr 返回经本 Listener 接受的连接 c 的对端 IP
func (l *Listener) RemoteAddr(c *Conn) (netip.Addr, error) {
	return l.srv.RemoteAddr(c, l)
}

// Close 释放本 Listener 的描述符，恰好执行一次
//
// 已接受的连接不受影响。阻塞中的 Accept 被唤醒并返回 ErrListenerClosed。
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(l, nil)
	err := l.fd.Close()
	l.srv.metrics.ListenerClosed()
	l.srv.log.Info("监听已关闭", "listener", l.id)
	if err != nil {
		return &IOError{Op: "close", Err: err}
	}
	return nil
}

// finalize 回收未关闭的监听，保持打开监听数准确
func (l *Listener) finalize() {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}
	_ = l.fd.Close()
	l.srv.metrics.ListenerClosed()
	l.srv.log.Warn("监听未关闭即被回收", "listener", l.id)
}

// Fd 返回交接通道描述符，可用于 poll/epoll 判断是否有连接待接受
//
// 关闭后返回 -1。
func (l *Listener) Fd() int { return l.fd.Fd() }

// ID 监听标识（仅用于日志）
func (l *Listener) ID() uuid.UUID { return l.id }

// Network 监听的网络类型
func (l *Listener) Network() string { return l.network }

// Address 监听时传入的地址
func (l *Listener) Address() string { return l.address }

// Funnel 是否为 Funnel 监听
func (l *Listener) Funnel() bool { return l.funnel }

// String 返回监听的简要描述
func (l *Listener) String() string {
	return fmt.Sprintf("Listener{%s %s %s funnel=%t}", l.id, l.network, l.address, l.funnel)
}
