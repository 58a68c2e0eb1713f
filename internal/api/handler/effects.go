package handler

import (
	"net/http"

	"github.com/kiranshivaraju/sceneswitch/internal/api/response"
	"github.com/kiranshivaraju/sceneswitch/internal/catalog"
)

// NewEffectsHandler returns GET /api/v1/effects.
func NewEffectsHandler(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, map[string]any{
			"effects":        cat.Effects,
			"export_presets": cat.ExportPresets,
		})
	}
}
