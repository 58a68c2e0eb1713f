package handler_test

import (
	"testing"

	"github.com/kiranshivaraju/sceneswitch/internal/config"
)

func uploadConfig(t *testing.T) config.UploadConfig {
	t.Helper()
	return config.UploadConfig{
		Dir:          t.TempDir(),
		MaxBytes:     10 << 20,
		AllowedTypes: []string{"video/mp4", "video/mov", "video/quicktime"},
	}
}
