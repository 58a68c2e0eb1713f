package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// LocalStager copies assets into a directory the API server exposes under /staged/.
type LocalStager struct {
	dir     string
	baseURL string
}

// NewLocalStager creates dir if needed. baseURL is the externally reachable address of the API server.
func NewLocalStager(dir, baseURL string) (*LocalStager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &LocalStager{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory staged files are written to.
func (s *LocalStager) Dir() string { return s.dir }

func (s *LocalStager) Stage(ctx context.Context, asset models.MediaAsset) (models.AssetRef, error) {
	if asset.LocalHandle == "" {
		return "", errors.New("asset has no local file")
	}
	name := stagedName(asset)
	dst := filepath.Join(s.dir, name)
	ref := models.AssetRef(s.baseURL + "/staged/" + url.PathEscape(name))

	if info, err := os.Stat(dst); err == nil && info.Size() == asset.ByteSize {
		return ref, nil
	}

	src, err := os.Open(asset.LocalHandle)
	if err != nil {
		return "", fmt.Errorf("open asset: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.dir, ".staging-*")
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: src}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("copy asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("publish staged file: %w", err)
	}
	return ref, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
