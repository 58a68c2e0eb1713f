package provider

import (
	"fmt"

	"github.com/kiranshivaraju/sceneswitch/internal/config"
	"github.com/kiranshivaraju/sceneswitch/internal/provider/httpapi"
	"github.com/kiranshivaraju/sceneswitch/internal/provider/mock"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// NewProvider constructs the transformation provider selected by config.
// Called once at startup.
func NewProvider(cfg config.ProviderConfig) (models.TransformationProvider, error) {
	switch cfg.Kind {
	case "http":
		return httpapi.NewClient(cfg.BaseURL, cfg.APIToken, cfg.Timeout), nil
	case "mock":
		return mock.NewSimulatedProvider(cfg.MockPollsToComplete), nil
	default:
		return nil, fmt.Errorf("unknown provider %q: must be one of http, mock", cfg.Kind)
	}
}
