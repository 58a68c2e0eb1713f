// Package handler implements the HTTP handlers of the SceneSwitch API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/sceneswitch/internal/api/middleware"
	"github.com/kiranshivaraju/sceneswitch/internal/api/response"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// requireTenant writes a 401 and returns false when auth did not attach a tenant.
func requireTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
	}
	return tenantID, ok
}

// uuidParam parses a chi URL parameter, writing a 400 with code on failure.
func uuidParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Error(w, http.StatusBadRequest, code, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page and limit query parameters, clamping them to sane bounds.
func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	switch {
	case limit < 1:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	return page, limit
}
