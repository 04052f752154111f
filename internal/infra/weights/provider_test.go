package weights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnsureDownloadsWhenAbsent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/model.pth", r.URL.Path)
		w.Write([]byte("weights-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewProvider(dir, srv.URL, zap.NewNop())

	path, err := p.Ensure(context.Background(), "model.pth")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model.pth"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights-bytes", string(data))

	// Second call is a cache hit, no second fetch.
	_, err = p.Ensure(context.Background(), "model.pth")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnsureFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProvider(t.TempDir(), srv.URL, zap.NewNop())

	_, err := p.Ensure(context.Background(), "missing.pth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(dir, "http://unused", zap.NewNop())

	info := p.Stat("model.pth")
	assert.False(t, info.Exists)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.pth"), []byte("abc"), 0o644))
	info = p.Stat("model.pth")
	assert.True(t, info.Exists)
	assert.Equal(t, int64(3), info.Size)
}
