package weights

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Provider keeps model weights in a local directory, downloading each file
// from remote hosting the first time it is requested.
type Provider struct {
	baseDir string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// FileInfo describes one weights file for the model-info API.
type FileInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
}

func NewProvider(baseDir, baseURL string, logger *zap.Logger) *Provider {
	return &Provider{
		baseDir: baseDir,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
		logger:  logger,
	}
}

// Ensure returns the local path for the named weights file, fetching it when
// absent. The download streams to a temp file and is renamed into place, so
// a partial download never masquerades as valid weights.
func (p *Provider) Ensure(ctx context.Context, name string) (string, error) {
	path := filepath.Join(p.baseDir, name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(p.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("create weights dir: %w", err)
	}

	url := p.baseURL + "/" + name
	p.logger.Info("downloading model weights", zap.String("name", name), zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build weights request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch weights %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch weights %s: unexpected status %s", name, resp.Status)
	}

	tmp, err := os.CreateTemp(p.baseDir, name+".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp weights file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write weights %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move weights into place: %w", err)
	}

	p.logger.Info("model weights downloaded",
		zap.String("name", name),
		zap.String("path", path),
		zap.Int64("bytes", written),
	)

	return path, nil
}

// Stat reports whether the named weights file is present and how large it is.
func (p *Provider) Stat(name string) FileInfo {
	path := filepath.Join(p.baseDir, name)
	info := FileInfo{Name: name, Path: path}
	if fi, err := os.Stat(path); err == nil {
		info.Exists = true
		info.Size = fi.Size()
	}
	return info
}
