package tailnet

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/fdutil"
	"github.com/dep2p/go-tailnet/internal/metrics"
)

// Direction 连接方向
type Direction int

const (
	// DirInbound 经 Listener 接受的连接
	DirInbound Direction = iota

	// DirOutbound 经 Dial 建立的连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Conn 覆盖网络上的一条连接
//
// Conn 独占一个流描述符，实现 io.ReadWriteCloser。读写直接对应一次
// read(2)/write(2) 系统调用，不做缓冲，也不设超时；需要超时的调用方
// 可以在 Fd 上自行处理。未关闭即被回收的 Conn 由终结器释放描述符。
type Conn struct {
	fd      *fdutil.Owner
	id      uuid.UUID
	dir     Direction
	network string
	address string

	srv    *Server
	closed atomic.Bool
}

var _ io.ReadWriteCloser = (*Conn)(nil)

func newConn(s *Server, fd int, dir Direction, network, address string) *Conn {
	s.metrics.ConnOpened()
	c := &Conn{
		fd:      fdutil.NewOwner(fd),
		id:      uuid.New(),
		dir:     dir,
		network: network,
		address: address,
		srv:     s,
	}
	runtime.SetFinalizer(c, (*Conn).finalize)
	return c
}

// Read 读取数据，阻塞直到有数据、对端关闭或出错
//
// 对端有序关闭后返回 0, io.EOF，之后的调用同样立即返回 0, io.EOF。
// 本端已关闭时返回 ErrConnClosed。
func (c *Conn) Read(p []byte) (int, error) {
	var n int
	err := c.fd.Do(func(fd int) error {
		if len(p) == 0 {
			return nil
		}
		return fdutil.IgnoringEINTR(func() error {
			var rerr error
			n, rerr = unix.Read(fd, p)
			return rerr
		})
	})

	switch {
	case errors.Is(err, fdutil.ErrClosed):
		return 0, ErrConnClosed
	case err != nil:
		if c.fd.Closed() {
			return 0, ErrConnClosed
		}
		return 0, &IOError{Op: "read", Err: err}
	case len(p) == 0:
		return 0, nil
	case n == 0:
		// Close 的 shutdown(2) 同样表现为 EOF
		if c.fd.Closed() {
			return 0, ErrConnClosed
		}
		return 0, io.EOF
	}

	c.srv.metrics.ConnBytes(metrics.DirectionIn, n)
	return n, nil
}

// Write 写入数据，阻塞直到至少写入一部分或出错
//
// 只执行一次 write(2)：可能只写入部分数据（n < len(p)），剩余部分由
// 调用方重试。本端已关闭时返回 ErrConnClosed。
func (c *Conn) Write(p []byte) (int, error) {
	var n int
	err := c.fd.Do(func(fd int) error {
		if len(p) == 0 {
			return nil
		}
		return fdutil.IgnoringEINTR(func() error {
			var werr error
			n, werr = unix.Write(fd, p)
			return werr
		})
	})

	switch {
	case errors.Is(err, fdutil.ErrClosed):
		return 0, ErrConnClosed
	case err != nil:
		if c.fd.Closed() {
			return 0, ErrConnClosed
		}
		return 0, &IOError{Op: "write", Err: err}
	}
	if n < 0 {
		n = 0
	}

	c.srv.metrics.ConnBytes(metrics.DirectionOut, n)
	return n, nil
}

// CloseWrite 关闭写方向（半关闭），对端随后读到 EOF
func (c *Conn) CloseWrite() error {
	err := c.fd.Shutdown(unix.SHUT_WR)
	switch {
	case errors.Is(err, fdutil.ErrClosed):
		return ErrConnClosed
	case err != nil:
		return &IOError{Op: "closewrite", Err: err}
	}
	return nil
}

// Close 释放描述符，恰好执行一次，重复调用无副作用
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(c, nil)
	err := c.fd.Close()
	c.srv.metrics.ConnClosed()
	c.srv.log.Debug("连接已关闭", "conn", c.id, "direction", c.dir)
	if err != nil {
		return &IOError{Op: "close", Err: err}
	}
	return nil
}

// finalize 回收未关闭的连接，保持打开连接数准确
func (c *Conn) finalize() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	_ = c.fd.Close()
	c.srv.metrics.ConnClosed()
	c.srv.log.Warn("连接未关闭即被回收", "conn", c.id, "direction", c.dir)
}

// Fd 返回底层描述符，仅用于轮询或设置超时，不转移所有权
//
// 关闭后返回 -1。
func (c *Conn) Fd() int { return c.fd.Fd() }

// ID 连接标识（仅用于日志）
func (c *Conn) ID() uuid.UUID { return c.id }

// Direction 连接方向
func (c *Conn) Direction() Direction { return c.dir }

// Network 连接的网络类型
func (c *Conn) Network() string { return c.network }

// String 返回连接的简要描述
func (c *Conn) String() string {
	if c.dir == DirOutbound {
		return fmt.Sprintf("Conn{%s %s %s -> %s}", c.id, c.dir, c.network, c.address)
	}
	return fmt.Sprintf("Conn{%s %s %s}", c.id, c.dir, c.network)
}
