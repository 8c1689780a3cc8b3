// Package fdpass 实现通过 Unix 套接字辅助数据（SCM_RIGHTS）传递描述符
//
// 引擎在交接通道上每次推送一条消息：少量数据 + 一个携带单个流描述符的
// 辅助数据段。Receive 是所有 Listener.Accept 共用的"接收一个描述符"原语，
// Send 是其对端，供进程内引擎实现使用。
package fdpass

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/dep2p/go-tailnet/internal/fdutil"
)

const (
	// dataBufSize 数据部分缓冲区大小，引擎只发送很短的占位数据
	dataBufSize = 64

	// maxRights 辅助数据缓冲区可容纳的描述符数
	//
	// 只使用第一个；多预留空间避免对端多发时出现 MSG_CTRUNC 导致描述符泄漏。
	maxRights = 4
)

var (
	// ErrRecvmsg recvmsg(2) 系统调用失败
	ErrRecvmsg = errors.New("recvmsg failed")

	// ErrControlMessage 交接消息缺少或携带了畸形的辅助数据
	ErrControlMessage = errors.New("malformed control message")

	// ErrWouldBlock 非阻塞接收时没有待处理的消息
	ErrWouldBlock = errors.New("no pending descriptor")
)

// Receive 从交接通道 fd 上接收一个描述符
//
// flags 传给 recvmsg(2)，例如 unix.MSG_DONTWAIT。返回的描述符已设置
// close-on-exec，所有权归调用方。
//
// 错误总是包装 ErrRecvmsg、ErrControlMessage 或 ErrWouldBlock 之一；
// 失败时不会遗留任何已接收的描述符。
func Receive(fd int, flags int) (int, error) {
	buf := make([]byte, dataBufSize)
	oob := make([]byte, unix.CmsgSpace(maxRights*4))

	var (
		n, oobn, rflags int
		err             error
	)
	err = fdutil.IgnoringEINTR(func() error {
		var rerr error
		n, oobn, rflags, _, rerr = unix.Recvmsg(fd, buf, oob, flags|recvFlags)
		return rerr
	})
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return -1, ErrWouldBlock
		}
		return -1, fmt.Errorf("%w: %w", ErrRecvmsg, err)
	}
	if n < 0 || oobn < 0 || oobn > len(oob) {
		panic(fmt.Sprintf("fdpass: impossible recvmsg lengths n=%d oobn=%d", n, oobn))
	}

	fds, perr := parseRights(oob[:oobn])
	if rflags&unix.MSG_CTRUNC != 0 {
		closeAll(fds)
		return -1, fmt.Errorf("%w: control data truncated", ErrControlMessage)
	}
	if perr != nil {
		closeAll(fds)
		return -1, fmt.Errorf("%w: %w", ErrControlMessage, perr)
	}
	if len(fds) == 0 {
		if n == 0 {
			// 对端关闭了交接通道
			return -1, fmt.Errorf("%w: %w", ErrControlMessage, io.EOF)
		}
		return -1, fmt.Errorf("%w: no SCM_RIGHTS in %d-byte message", ErrControlMessage, n)
	}

	closeAll(fds[1:])
	setCloexec(fds[0])
	return fds[0], nil
}

// parseRights 按顺序提取所有 SCM_RIGHTS 段中的描述符
//
// 解析中途失败时仍返回已提取的描述符，便于调用方关闭。
func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}

	var fds []int
	for i := range msgs {
		m := &msgs[i]
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		rights, err := unix.ParseUnixRights(m)
		if err != nil {
			return fds, err
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}

// Send 在交接通道 fd 上发送描述符 connFd
//
// 发送成功后接收方获得独立的引用，调用方仍需自行关闭 connFd。
// 对端已关闭时返回 EPIPE。
func Send(fd int, connFd int, payload []byte) error {
	if len(payload) == 0 {
		// 部分平台不会投递数据为空的 SCM_RIGHTS 消息
		payload = []byte{0}
	}
	rights := unix.UnixRights(connFd)
	return fdutil.IgnoringEINTR(func() error {
		return unix.Sendmsg(fd, payload, rights, nil, sendFlags)
	})
}
