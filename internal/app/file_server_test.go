package app

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

func TestFileServer_OpenAndComplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Test Video.mp4")
	require.NoError(t, os.WriteFile(path, []byte("media bytes"), 0644))

	srv := NewFileServer(dir, zap.NewNop())
	f, err := srv.Open("Test Video.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(11), f.Size)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "media bytes", string(data))

	f.Complete()
	f.Complete()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = srv.Open("Test Video.mp4")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileServer_AbortKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keep.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	srv := NewFileServer(dir, zap.NewNop())
	f, err := srv.Open("keep.mp4")
	require.NoError(t, err)

	f.Abort()
	f.Complete()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileServer_Missing(t *testing.T) {
	srv := NewFileServer(t.TempDir(), zap.NewNop())

	_, err := srv.Open("nope.mp4")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileServer_DirectoryIsNotServed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	srv := NewFileServer(dir, zap.NewNop())
	_, err := srv.Open("sub")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileServer_RejectsTraversal(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("s"), 0644))

	srv := NewFileServer(t.TempDir(), zap.NewNop())

	for _, name := range []string{"", ".", "..", "../secret.txt", "a/b.mp4", `..\secret.txt`, secret} {
		t.Run(name, func(t *testing.T) {
			_, err := srv.Open(name)
			assert.ErrorIs(t, err, domain.ErrInvalidFilename)
		})
	}

	_, err := os.Stat(secret)
	assert.NoError(t, err)
}

func TestFileServer_ConcurrentOpensServeOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("once"), 0644))

	srv := NewFileServer(dir, zap.NewNop())

	const clients = 8
	var served, refused atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			f, err := srv.Open("a.mp4")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrFileNotFound)
				refused.Add(1)
				return
			}
			data, err := io.ReadAll(f)
			assert.NoError(t, err)
			assert.Equal(t, "once", string(data))
			served.Add(1)
			f.Complete()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), served.Load())
	assert.Equal(t, int32(clients-1), refused.Load())
}

func TestFileServer_ClaimedUntilReleased(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp4"), []byte("bytes"), 0644))

	srv := NewFileServer(dir, zap.NewNop())
	first, err := srv.Open("b.mp4")
	require.NoError(t, err)

	_, err = srv.Open("b.mp4")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	first.Abort()

	again, err := srv.Open("b.mp4")
	require.NoError(t, err)
	again.Complete()
}

func TestFileServer_AbortMidTransferKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.mp4")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	srv := NewFileServer(dir, zap.NewNop())
	f, err := srv.Open("partial.mp4")
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(f, buf)
	require.NoError(t, err)
	f.Abort()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	retry, err := srv.Open("partial.mp4")
	require.NoError(t, err)
	data, err = io.ReadAll(retry)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	retry.Complete()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
