// Package staging makes local media assets reachable by the transformation provider.
package staging

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/sceneswitch/internal/batch"
	"github.com/kiranshivaraju/sceneswitch/internal/config"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// NewStager constructs the stager selected by config.
// Called once at startup.
func NewStager(ctx context.Context, cfg config.StagingConfig) (batch.Stager, error) {
	switch cfg.Kind {
	case "local":
		return NewLocalStager(cfg.LocalDir, cfg.PublicBaseURL)
	case "s3":
		return NewS3Stager(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown stager %q: must be one of local, s3", cfg.Kind)
	}
}

// stagedName derives a stable object name from the asset id, so restaging is a no-op.
func stagedName(asset models.MediaAsset) string {
	ext := filepath.Ext(asset.LocalHandle)
	if ext == "" {
		ext = filepath.Ext(asset.DisplayName)
	}
	return asset.ID.String() + strings.ToLower(ext)
}
