package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/internal/api"
	"github.com/kiranshivaraju/sceneswitch/internal/api/handler"
	mw "github.com/kiranshivaraju/sceneswitch/internal/api/middleware"
	"github.com/kiranshivaraju/sceneswitch/internal/batch"
	"github.com/kiranshivaraju/sceneswitch/internal/catalog"
	"github.com/kiranshivaraju/sceneswitch/internal/media"
	"github.com/kiranshivaraju/sceneswitch/internal/provider/mock"
	"github.com/kiranshivaraju/sceneswitch/internal/store"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var (
	testTenantID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	otherTenant  = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	testRawKey   = "ss_test_contract_key_1234567890"
	readOnlyKey  = "ss_read_contract_key_1234567890"
	testBatchID  = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")
)

func hash(t *testing.T, raw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// ─── mock key store ──────────────────────────────────────────────────────────

type mockKeyStore struct {
	mu   sync.Mutex
	keys []*models.APIKey
}

func (s *mockKeyStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockKeyStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockKeyStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.TenantID == key.TenantID && k.Name == key.Name {
			return store.ErrDuplicateKey
		}
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *mockKeyStore) ListAPIKeys(_ context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.TenantID == tenantID && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockKeyStore) RevokeAPIKey(_ context.Context, id, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id && k.TenantID == tenantID && k.DeletedAt == nil {
			now := time.Now()
			k.DeletedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

// ─── mock batch service ──────────────────────────────────────────────────────

type mockBatchService struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]*models.BatchRun
	submitted [][]string
	submitErr error
	cancelErr error
	cancelled []uuid.UUID
}

func newMockBatchService() *mockBatchService {
	return &mockBatchService{runs: make(map[uuid.UUID]*models.BatchRun)}
}

func (s *mockBatchService) Submit(_ context.Context, tenantID uuid.UUID, assets []models.MediaAsset, effects []string) (*models.BatchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, effects)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	run := batch.NewBatchRun(tenantID, assets, effects)
	s.runs[run.ID] = run
	return run, nil
}

func (s *mockBatchService) Cancel(_ context.Context, batchID, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[batchID]
	if !ok || run.TenantID != tenantID {
		return store.ErrNotFound
	}
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, batchID)
	return nil
}

func (s *mockBatchService) Get(_ context.Context, batchID, tenantID uuid.UUID) (*models.BatchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[batchID]
	if !ok || run.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func (s *mockBatchService) List(_ context.Context, f store.BatchFilter) ([]*models.BatchRun, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.BatchRun
	for _, r := range s.runs {
		if r.TenantID == f.TenantID && (f.Status == "" || string(r.Status) == f.Status) {
			out = append(out, r)
		}
	}
	total := len(out)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := min(start+f.Limit, total)
	return out[start:end], total, nil
}

// ─── mock pinger ─────────────────────────────────────────────────────────────

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server  *httptest.Server
	keys    *mockKeyStore
	batches *mockBatchService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ks := &mockKeyStore{keys: []*models.APIKey{
		{
			ID:        uuid.New(),
			TenantID:  testTenantID,
			Name:      "contract",
			KeyHash:   hash(t, testRawKey),
			KeyPrefix: testRawKey[:mw.KeyPrefixLen],
			Scopes:    []string{"read", "write", "admin"},
		},
		{
			ID:        uuid.New(),
			TenantID:  testTenantID,
			Name:      "reader",
			KeyHash:   hash(t, readOnlyKey),
			KeyPrefix: readOnlyKey[:mw.KeyPrefixLen],
			Scopes:    []string{"read"},
		},
	}}
	svc := newMockBatchService()

	finished := batch.NewBatchRun(testTenantID, []models.MediaAsset{{ID: uuid.New(), DisplayName: "a.mp4"}}, []string{"retro", "anime"})
	finished.ID = testBatchID
	finished.Status = models.BatchStatusPartialSuccess
	finished.Phase = models.BatchPhaseDone
	finished.Progress = 100
	finished.Jobs = []models.TransformJob{
		{ID: uuid.New(), BatchID: testBatchID, Ordinal: 0, AssetName: "a.mp4", Effect: "retro", Status: models.JobStatusCompleted, OutputRef: "https://cdn/out.mp4"},
		{ID: uuid.New(), BatchID: testBatchID, Ordinal: 1, AssetName: "a.mp4", Effect: "anime", Status: models.JobStatusTimedOut, FailureReason: "no terminal status after 30 polls"},
	}
	svc.runs[testBatchID] = finished

	intake, err := media.NewIntake(uploadConfig(t))
	require.NoError(t, err)
	cat := catalog.Default()

	auth := mw.NewAuth(ks)
	router := api.NewRouter(api.Dependencies{
		Auth:               auth,
		RateLimit:          mw.NewRateLimit(newCounter(), 5),
		HealthHandler:      handler.NewHealthHandler(pinger{}, pinger{}, mock.NewSimulatedProvider(1)),
		EffectsHandler:     handler.NewEffectsHandler(cat),
		CreateBatchHandler: handler.NewCreateBatchHandler(svc, intake, 1<<20),
		ListBatchesHandler: handler.NewListBatchesHandler(svc),
		GetBatchHandler:    handler.NewGetBatchHandler(svc),
		CancelBatchHandler: handler.NewCancelBatchHandler(svc),
		CreateKeyHandler:   handler.NewCreateKeyHandler(ks),
		ListKeysHandler:    handler.NewListKeysHandler(ks),
		RevokeKeyHandler:   handler.NewRevokeKeyHandler(ks),
	})

	ts := &testServer{server: httptest.NewServer(router), keys: ks, batches: svc}
	t.Cleanup(ts.server.Close)
	return ts
}

type counter struct {
	mu sync.Mutex
	n  map[string]int64
}

func newCounter() *counter { return &counter{n: make(map[string]int64)} }

func (c *counter) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n[key]++
	return c.n[key], nil
}

func (ts *testServer) request(t *testing.T, method, path, key string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, body)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) jsonRequest(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return ts.request(t, method, path, testRawKey, body, "application/json")
}

type filePart struct {
	name, contentType, body string
}

func multipartBody(t *testing.T, files []filePart, effects ...string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="files"; filename="` + f.name + `"`}
		h["Content-Type"] = []string{f.contentType}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	for _, e := range effects {
		require.NoError(t, w.WriteField("effects", e))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode(t, resp)["error"].(map[string]any)["code"].(string)
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONTRACT TESTS
// ═══════════════════════════════════════════════════════════════════════════════

// ─── GET /api/v1/health ──────────────────────────────────────────────────────

func TestHealth_200_AllOK(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "GET", "/api/v1/health", "", nil, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "mock-simulated", data["provider"])
}

func TestHealth_503_Degraded(t *testing.T) {
	h := handler.NewHealthHandler(pinger{err: errors.New("down")}, pinger{}, mock.NewSimulatedProvider(1))
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "degraded", details["database"])
	assert.Equal(t, "ok", details["cache"])
}

// ─── GET /api/v1/effects ─────────────────────────────────────────────────────

func TestEffects_200_CatalogAndPresets(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "GET", "/api/v1/effects", testRawKey, nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Len(t, data["effects"], 12)
	assert.NotEmpty(t, data["export_presets"])
}

// ─── POST /api/v1/batches ────────────────────────────────────────────────────

func TestCreateBatch_202_WithRejected(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, []filePart{
		{"a.mp4", "video/mp4", "aaa"},
		{"b.mov", "video/quicktime", "bbb"},
		{"notes.txt", "text/plain", "hi"},
	}, "Retro", "anime,retro")

	resp := ts.request(t, "POST", "/api/v1/batches", testRawKey, body, ct)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]any)
	b := data["batch"].(map[string]any)
	assert.Equal(t, "pending", b["status"])
	assert.Len(t, b["assets"], 2)

	rejected := data["rejected"].([]any)
	require.Len(t, rejected, 1)
	assert.Equal(t, "notes.txt", rejected[0].(map[string]any)["file_name"])

	require.Len(t, ts.batches.submitted, 1)
	assert.Equal(t, []string{"Retro", "anime", "retro"}, ts.batches.submitted[0])
}

func TestCreateBatch_422_NoValidFiles(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, []filePart{{"notes.txt", "text/plain", "hi"}}, "retro")

	resp := ts.request(t, "POST", "/api/v1/batches", testRawKey, body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "NO_VALID_FILES", errorCode(t, resp))
	assert.Empty(t, ts.batches.submitted)
}

func TestCreateBatch_400_MissingEffects(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, []filePart{{"a.mp4", "video/mp4", "aaa"}})

	resp := ts.request(t, "POST", "/api/v1/batches", testRawKey, body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBatch_400_MissingFiles(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, nil, "retro")

	resp := ts.request(t, "POST", "/api/v1/batches", testRawKey, body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBatch_400_NotMultipart(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "POST", "/api/v1/batches", testRawKey, bytes.NewReader([]byte(`{}`)), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBatch_413_TooLarge(t *testing.T) {
	intake, err := media.NewIntake(uploadConfig(t))
	require.NoError(t, err)
	h := handler.NewCreateBatchHandler(newMockBatchService(), intake, 1<<20)
	body, ct := multipartBody(t, []filePart{{"a.mp4", "video/mp4", string(make([]byte, 2<<20))}}, "retro")

	req := httptest.NewRequest("POST", "/api/v1/batches", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(mw.SetTenantID(req.Context(), testTenantID))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCreateBatch_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{batch.ErrUnknownEffect, http.StatusBadRequest, "UNKNOWN_EFFECT"},
		{batch.ErrTooFewAssets, http.StatusUnprocessableEntity, "TOO_FEW_ASSETS"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			ts := newTestServer(t)
			ts.batches.submitErr = tc.err
			body, ct := multipartBody(t, []filePart{{"a.mp4", "video/mp4", "aaa"}}, "retro")

			resp := ts.request(t, "POST", "/api/v1/batches", testRawKey, body, ct)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, errorCode(t, resp))
		})
	}
}

// ─── GET /api/v1/batches ─────────────────────────────────────────────────────

func TestListBatches_200_Paginated(t *testing.T) {
	ts := newTestServer(t)
	for range 3 {
		run := batch.NewBatchRun(testTenantID, nil, []string{"retro"})
		ts.batches.runs[run.ID] = run
	}
	other := batch.NewBatchRun(otherTenant, nil, []string{"retro"})
	ts.batches.runs[other.ID] = other

	resp := ts.request(t, "GET", "/api/v1/batches?page=1&limit=2", testRawKey, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Len(t, body["data"], 2)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(4), meta["total"])
	assert.Equal(t, true, meta["has_next"])
}

func TestListBatches_StatusFilter(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "GET", "/api/v1/batches?status=partial_success", testRawKey, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, resp)["data"], 1)

	resp = ts.request(t, "GET", "/api/v1/batches?status=bogus", testRawKey, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ─── GET /api/v1/batches/{batchID} ───────────────────────────────────────────

func TestGetBatch_200_WithDiagnostics(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "GET", "/api/v1/batches/"+testBatchID.String(), testRawKey, nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, testBatchID.String(), data["id"])
	assert.Equal(t, "partial_success", data["status"])
	assert.Len(t, data["jobs"], 2)

	diags := data["diagnostics"].([]any)
	require.Len(t, diags, 1)
	assert.Equal(t, "timed_out", diags[0].(map[string]any)["outcome"])
}

func TestGetBatch_404_OtherTenant(t *testing.T) {
	ts := newTestServer(t)
	ts.batches.runs[testBatchID].TenantID = otherTenant

	resp := ts.request(t, "GET", "/api/v1/batches/"+testBatchID.String(), testRawKey, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "BATCH_NOT_FOUND", errorCode(t, resp))
}

func TestGetBatch_400_InvalidID(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "GET", "/api/v1/batches/not-a-uuid", testRawKey, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BATCH_ID", errorCode(t, resp))
}

// ─── POST /api/v1/batches/{batchID}/cancel ───────────────────────────────────

func TestCancelBatch_202(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "POST", "/api/v1/batches/"+testBatchID.String()+"/cancel", testRawKey, nil, "")

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []uuid.UUID{testBatchID}, ts.batches.cancelled)
}

func TestCancelBatch_409_NotRunning(t *testing.T) {
	ts := newTestServer(t)
	ts.batches.cancelErr = batch.ErrBatchNotRunning

	resp := ts.request(t, "POST", "/api/v1/batches/"+testBatchID.String()+"/cancel", testRawKey, nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "BATCH_NOT_RUNNING", errorCode(t, resp))
}

func TestCancelBatch_404_Unknown(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "POST", "/api/v1/batches/"+uuid.NewString()+"/cancel", testRawKey, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── /api/v1/admin/keys ──────────────────────────────────────────────────────

func TestCreateKey_201_WithRawKey(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.jsonRequest(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "ci", "scopes": []string{"read"}})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	raw := data["key"].(string)
	assert.Regexp(t, `^ss_[0-9a-f]{32}$`, raw)
	assert.Equal(t, raw[:mw.KeyPrefixLen], data["key_prefix"])

	// The new key authenticates.
	resp = ts.request(t, "GET", "/api/v1/effects", raw, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateKey_409_Duplicate(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.jsonRequest(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "contract"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateKey_400_Validation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.jsonRequest(t, "POST", "/api/v1/admin/keys", map[string]any{"name": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.jsonRequest(t, "POST", "/api/v1/admin/keys", map[string]any{"name": "x", "scopes": []string{"root"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListKeys_DoesNotExposeHash(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.jsonRequest(t, "GET", "/api/v1/admin/keys", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	keys := decode(t, resp)["data"].([]any)
	require.Len(t, keys, 2)
	for _, k := range keys {
		m := k.(map[string]any)
		assert.NotContains(t, m, "key")
		assert.NotContains(t, m, "key_hash")
		assert.NotEmpty(t, m["key_prefix"])
	}
}

func TestRevokeKey(t *testing.T) {
	ts := newTestServer(t)
	readerID := ts.keys.keys[1].ID

	resp := ts.jsonRequest(t, "DELETE", "/api/v1/admin/keys/"+readerID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.request(t, "GET", "/api/v1/effects", readOnlyKey, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.jsonRequest(t, "DELETE", "/api/v1/admin/keys/"+readerID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminEndpoints_403_WithoutAdminScope(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "GET", "/api/v1/admin/keys", readOnlyKey, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// ─── auth and rate limiting ──────────────────────────────────────────────────

func TestAuth_InvalidBearerToken(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, "GET", "/api/v1/batches", "ss_wrong_key_000000000000", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimit_429_Exceeded(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 5; i++ {
		resp := ts.request(t, "GET", "/api/v1/effects", testRawKey, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	}
	resp := ts.request(t, "GET", "/api/v1/effects", testRawKey, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, resp))
}
