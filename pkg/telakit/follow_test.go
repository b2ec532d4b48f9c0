package telakit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFollow проверяет отправку существующих и дописанных строк файла
func TestFollow(t *testing.T) {
	sink := newLineSink(t)
	client := newTestClient(t, sink.addr())

	path := filepath.Join(t.TempDir(), "live.txt")
	require.NoError(t, os.WriteFile(path, []byte("CO 0,255,0\nPO 1,1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		sent int
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		sent, err := client.Follow(ctx, path)
		resCh <- result{sent, err}
	}()

	sink.expect(t, "CO 0,255,0", "PO 1,1")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	// Неполная строка ждёт завершения
	_, err = f.WriteString("PO 2,2\nPO 3,")
	require.NoError(t, err)
	sink.expect(t, "PO 2,2")

	_, err = f.WriteString("3\n\n")
	require.NoError(t, err)
	sink.expect(t, "PO 3,3")

	cancel()
	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, 4, res.sent)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

// TestFollowRemoved проверяет остановку при удалении файла
func TestFollowRemoved(t *testing.T) {
	sink := newLineSink(t)
	client := newTestClient(t, sink.addr())

	path := filepath.Join(t.TempDir(), "live.txt")
	require.NoError(t, os.WriteFile(path, []byte("PO 1,1\n"), 0o644))

	resCh := make(chan int, 1)
	go func() {
		sent, _ := client.Follow(context.Background(), path)
		resCh <- sent
	}()

	sink.expect(t, "PO 1,1")
	require.NoError(t, os.Remove(path))

	select {
	case sent := <-resCh:
		assert.Equal(t, 1, sent)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after remove")
	}
}

func TestFollowNotConnected(t *testing.T) {
	client := NewClient(ClientConfig{})
	_, err := client.Follow(context.Background(), "unused.txt")
	assert.ErrorIs(t, err, ErrClientNotConnected)
}
