//go:build unix && !linux

package fdpass

import "golang.org/x/sys/unix"

const (
	recvFlags = 0
	sendFlags = 0
)

// setCloexec 在不支持 MSG_CMSG_CLOEXEC 的平台上补设 close-on-exec
func setCloexec(fd int) {
	unix.CloseOnExec(fd)
}
