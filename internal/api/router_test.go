package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/internal/api"
	mw "github.com/kiranshivaraju/sceneswitch/internal/api/middleware"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- stubs ---

type stubKeyStore struct {
	keys []*models.APIKey
}

func (s *stubKeyStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return s.keys, nil
}
func (s *stubKeyStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

type stubCounter struct{}

func (stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

const readKey = "ss_reader_0123456789abcdef"

func newTestRouter(t *testing.T, stagedDir string) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(readKey), bcrypt.MinCost)
	require.NoError(t, err)
	ks := &stubKeyStore{keys: []*models.APIKey{{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		KeyHash:  string(hash),
		Scopes:   []string{"read", "write"},
	}}}

	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	return api.NewRouter(api.Dependencies{
		Auth:           mw.NewAuth(ks),
		RateLimit:      mw.NewRateLimit(stubCounter{}, 60),
		AllowedOrigins: []string{"https://app.example.com"},
		StagedDir:      stagedDir,
		HealthHandler:  ok,
		EffectsHandler: ok,
	})
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)["code"].(string)
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter(t, "")

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/effects"},
		{"POST", "/api/v1/batches"},
		{"GET", "/api/v1/batches"},
		{"GET", "/api/v1/batches/" + uuid.NewString()},
		{"POST", "/api/v1/batches/" + uuid.NewString() + "/cancel"},
		{"POST", "/api/v1/admin/keys"},
		{"GET", "/api/v1/admin/keys"},
		{"DELETE", "/api/v1/admin/keys/" + uuid.NewString()},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(ep.method, ep.path, nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "INVALID_TOKEN", errCode(t, w))
		})
	}
}

func TestRouter_UnwiredHandler_NotImplemented(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("GET", "/api/v1/batches", nil)
	req.Header.Set("Authorization", "Bearer "+readKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "NOT_IMPLEMENTED", errCode(t, w))
}

func TestRouter_AdminRequiresScope(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("GET", "/api/v1/admin/keys", nil)
	req.Header.Set("Authorization", "Bearer "+readKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/nonexistent", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest("OPTIONS", "/api/v1/batches", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_StagedFilesArePublic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("staged"), 0o644))
	router := newTestRouter(t, dir)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/staged/clip.mp4", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "staged", w.Body.String())
}

func TestRouter_StagedDisabled(t *testing.T) {
	router := newTestRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/staged/clip.mp4", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
