package tailnet

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tailnet/internal/engine/enginetest"
)

// TestConn_EOFRepeated 对端关闭后每次读取都返回 EOF
func TestConn_EOFRepeated(t *testing.T) {
	n := enginetest.NewNetwork()
	client, server, _, _, _ := pair(t, n)

	require.NoError(t, client.Close())

	buf := make([]byte, 8)
	for i := 0; i < 3; i++ {
		got, err := server.Read(buf)
		assert.Equal(t, 0, got)
		assert.ErrorIs(t, err, io.EOF, "第 %d 次读取", i+1)
	}

	t.Log("✅ 重复 EOF 测试通过")
}

func TestConn_PartialReads(t *testing.T) {
	n := enginetest.NewNetwork()
	client, server, _, _, _ := pair(t, n)

	_, err := client.Write([]byte("abcdef"))
	require.NoError(t, err)

	small := make([]byte, 2)
	var got []byte
	for len(got) < 6 {
		k, err := server.Read(small)
		require.NoError(t, err)
		got = append(got, small[:k]...)
	}
	assert.Equal(t, "abcdef", string(got))

	k, err := server.Read(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, k)

	t.Log("✅ 分段读取测试通过")
}

func TestConn_UseAfterClose(t *testing.T) {
	n := enginetest.NewNetwork()
	client, _, _, _, _ := pair(t, n)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "重复关闭无副作用")
	assert.Equal(t, -1, client.Fd())

	_, err := client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrConnClosed)
	_, err = client.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.ErrorIs(t, client.CloseWrite(), ErrConnClosed)

	t.Log("✅ 关闭后使用测试通过")
}

// TestConn_CloseUnblocksRead 另一 goroutine 中的 Close 唤醒阻塞的 Read
func TestConn_CloseUnblocksRead(t *testing.T) {
	n := enginetest.NewNetwork()
	_, server, _, _, _ := pair(t, n)

	done := make(chan error, 1)
	go func() {
		_, err := server.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, server.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Close 未唤醒 Read")
	}

	t.Log("✅ 关闭唤醒 Read 测试通过")
}

func TestConn_String(t *testing.T) {
	n := enginetest.NewNetwork()
	client, server, _, _, _ := pair(t, n)

	assert.Contains(t, client.String(), "outbound")
	assert.Contains(t, client.String(), "pair-server")
	assert.Contains(t, server.String(), "inbound")
	assert.NotEqual(t, client.ID(), server.ID())
	assert.Equal(t, "unknown", Direction(9).String())

	t.Log("✅ 连接描述测试通过")
}
