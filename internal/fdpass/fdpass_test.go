package fdpass

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// ============================================================================
//                              测试辅助
// ============================================================================

// handoffPair 创建交接通道（一对 Unix 流套接字）
func handoffPair(t *testing.T) (recv, send int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// streamPair 创建被交接的流连接
func streamPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	return fds[0], fds[1]
}

func inode(t *testing.T, fd int) uint64 {
	t.Helper()
	var st unix.Stat_t
	require.NoError(t, unix.Fstat(fd, &st))
	return uint64(st.Ino)
}

// ============================================================================
//                              Receive 测试
// ============================================================================

// TestReceive_TransfersDescriptor 测试描述符经辅助数据转移
func TestReceive_TransfersDescriptor(t *testing.T) {
	recv, send := handoffPair(t)
	a, b := streamPair(t)
	defer unix.Close(a)

	want := inode(t, b)
	require.NoError(t, Send(send, b, []byte("hello")))
	require.NoError(t, unix.Close(b)) // 发送方放弃引用

	got, err := Receive(recv, 0)
	require.NoError(t, err)
	defer unix.Close(got)

	assert.Equal(t, want, inode(t, got), "received descriptor must refer to the same socket")

	_, err = unix.Write(a, []byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := unix.Read(got, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
	t.Log("✅ 描述符转移测试通过")
}

// TestReceive_PreservesOrder 测试多次交接按发送顺序接收
func TestReceive_PreservesOrder(t *testing.T) {
	recv, send := handoffPair(t)

	var inodes []uint64
	for i := 0; i < 3; i++ {
		a, b := streamPair(t)
		inodes = append(inodes, inode(t, b))
		require.NoError(t, Send(send, b, nil))
		unix.Close(b)
		unix.Close(a)
	}

	for i := 0; i < 3; i++ {
		fd, err := Receive(recv, 0)
		require.NoError(t, err)
		assert.Equal(t, inodes[i], inode(t, fd), "message %d out of order", i)
		unix.Close(fd)
	}
}

// TestReceive_NoRights 测试不携带描述符的消息
func TestReceive_NoRights(t *testing.T) {
	recv, send := handoffPair(t)

	_, err := unix.Write(send, []byte("x"))
	require.NoError(t, err)

	fd, err := Receive(recv, 0)
	assert.Equal(t, -1, fd)
	assert.ErrorIs(t, err, ErrControlMessage)
	assert.False(t, errors.Is(err, ErrRecvmsg))
}

// TestReceive_PeerClosed 测试交接通道被对端关闭
func TestReceive_PeerClosed(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	require.NoError(t, unix.Close(fds[1]))

	_, err = Receive(fds[0], 0)
	assert.ErrorIs(t, err, ErrControlMessage)
	assert.ErrorIs(t, err, io.EOF)
}

// TestReceive_WouldBlock 测试非阻塞接收
func TestReceive_WouldBlock(t *testing.T) {
	recv, _ := handoffPair(t)

	_, err := Receive(recv, unix.MSG_DONTWAIT)
	assert.ErrorIs(t, err, ErrWouldBlock)
}

// TestReceive_BadDescriptor 测试 recvmsg 本身失败
func TestReceive_BadDescriptor(t *testing.T) {
	_, err := Receive(-1, 0)
	assert.ErrorIs(t, err, ErrRecvmsg)
	assert.ErrorIs(t, err, unix.EBADF)
}

// TestReceive_ExtraRightsClosed 测试一条消息携带多个描述符时只保留第一个
func TestReceive_ExtraRightsClosed(t *testing.T) {
	recv, send := handoffPair(t)
	a1, b1 := streamPair(t)
	a2, b2 := streamPair(t)
	defer unix.Close(a1)
	defer unix.Close(a2)

	first := inode(t, b1)
	rights := unix.UnixRights(b1, b2)
	require.NoError(t, unix.Sendmsg(send, []byte{0}, rights, nil, 0))
	unix.Close(b1)
	unix.Close(b2)

	fd, err := Receive(recv, 0)
	require.NoError(t, err)
	defer unix.Close(fd)
	assert.Equal(t, first, inode(t, fd))

	// 第二个描述符已被关闭：a2 的对端不存在，读到 EOF
	buf := make([]byte, 1)
	n, err := unix.Read(a2, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestSend_PeerClosed 测试对端关闭后发送返回 EPIPE
func TestSend_PeerClosed(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])
	unix.Close(fds[0])

	a, b := streamPair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	err = Send(fds[1], b, nil)
	assert.ErrorIs(t, err, unix.EPIPE)
}
