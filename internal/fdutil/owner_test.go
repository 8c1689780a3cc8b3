package fdutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	return fds[0], fds[1]
}

// TestOwner_CloseOnce 测试重复关闭无副作用
func TestOwner_CloseOnce(t *testing.T) {
	a, b := socketpair(t)
	defer unix.Close(b)

	o := NewOwner(a)
	assert.Equal(t, a, o.Fd())

	require.NoError(t, o.Close())
	assert.True(t, o.Closed())
	assert.Equal(t, -1, o.Fd())
	assert.NoError(t, o.Close())

	err := o.Do(func(int) error {
		t.Fatal("fn must not run after close")
		return nil
	})
	assert.ErrorIs(t, err, ErrClosed)
	t.Log("✅ 重复关闭测试通过")
}

// TestOwner_CloseWakesBlockedRead 测试 Close 唤醒阻塞读取
func TestOwner_CloseWakesBlockedRead(t *testing.T) {
	a, b := socketpair(t)
	defer unix.Close(b)

	o := NewOwner(a)
	started := make(chan struct{})
	done := make(chan int, 1)
	go func() {
		_ = o.Do(func(fd int) error {
			close(started)
			buf := make([]byte, 1)
			n, _ := unix.Read(fd, buf)
			done <- n
			return nil
		})
	}()

	<-started
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, o.Close())

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked read was not woken by Close")
	}
}

// TestOwner_NegativePanics 测试负数描述符属于编程错误
func TestOwner_NegativePanics(t *testing.T) {
	assert.Panics(t, func() { NewOwner(-1) })
}

func TestIgnoringEINTR(t *testing.T) {
	calls := 0
	err := IgnoringEINTR(func() error {
		calls++
		if calls < 3 {
			return unix.EINTR
		}
		return unix.EBADF
	})
	assert.Equal(t, unix.EBADF, err)
	assert.Equal(t, 3, calls)
}
