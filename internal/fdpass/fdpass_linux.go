package fdpass

import "golang.org/x/sys/unix"

const (
	// recvFlags 接收时由内核原子地设置 close-on-exec
	recvFlags = unix.MSG_CMSG_CLOEXEC

	// sendFlags 对端关闭时返回 EPIPE 而不是 SIGPIPE
	sendFlags = unix.MSG_NOSIGNAL
)

func setCloexec(int) {}
