package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/internal/api/response"
	"github.com/kiranshivaraju/sceneswitch/internal/batch"
	"github.com/kiranshivaraju/sceneswitch/internal/diagnostics"
	"github.com/kiranshivaraju/sceneswitch/internal/media"
	"github.com/kiranshivaraju/sceneswitch/internal/store"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// multipartMemory is how much of an upload is buffered in memory before spilling to disk.
const multipartMemory = 32 << 20

// BatchService is what the batch handlers need from the batch service.
type BatchService interface {
	Submit(ctx context.Context, tenantID uuid.UUID, assets []models.MediaAsset, effects []string) (*models.BatchRun, error)
	Cancel(ctx context.Context, batchID, tenantID uuid.UUID) error
	Get(ctx context.Context, batchID, tenantID uuid.UUID) (*models.BatchRun, error)
	List(ctx context.Context, filter store.BatchFilter) ([]*models.BatchRun, int, error)
}

// Intake accepts uploaded files as media assets.
type Intake interface {
	AcceptUploads(ctx context.Context, files []*multipart.FileHeader) ([]models.MediaAsset, []*media.ValidationError, error)
	Discard(assets []models.MediaAsset)
}

type createBatchResponse struct {
	Batch    *models.BatchRun          `json:"batch"`
	Rejected []*media.ValidationError `json:"rejected"`
}

type batchDetail struct {
	*models.BatchRun
	Diagnostics []models.FailureGroup `json:"diagnostics"`
}

// NewCreateBatchHandler returns POST /api/v1/batches.
// The body is multipart with repeated "files" parts and one or more "effects" values.
func NewCreateBatchHandler(svc BatchService, intake Intake, maxRequestBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE",
					"Upload exceeds the maximum request size", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "files is required", nil)
			return
		}
		effects := splitEffects(r.MultipartForm.Value["effects"])
		if len(effects) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "effects is required", nil)
			return
		}

		assets, rejected, err := intake.AcceptUploads(r.Context(), files)
		if err != nil {
			slog.Error("saving uploads", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save uploads", nil)
			return
		}
		if rejected == nil {
			rejected = []*media.ValidationError{}
		}
		if len(assets) == 0 {
			response.Error(w, http.StatusUnprocessableEntity, "NO_VALID_FILES",
				"None of the uploaded files were accepted", rejected)
			return
		}

		run, err := svc.Submit(r.Context(), tenantID, assets, effects)
		if err != nil {
			intake.Discard(assets)
			switch {
			case errors.Is(err, batch.ErrUnknownEffect):
				response.Error(w, http.StatusBadRequest, "UNKNOWN_EFFECT", err.Error(), nil)
			case errors.Is(err, batch.ErrEmptyBatch):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			case errors.Is(err, batch.ErrTooFewAssets):
				response.Error(w, http.StatusUnprocessableEntity, "TOO_FEW_ASSETS", err.Error(), rejected)
			default:
				slog.Error("submitting batch", "tenant_id", tenantID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start batch", nil)
			}
			return
		}

		response.Accepted(w, createBatchResponse{Batch: run, Rejected: rejected})
	}
}

// NewListBatchesHandler returns GET /api/v1/batches.
func NewListBatchesHandler(svc BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r)
		if !ok {
			return
		}

		status := r.URL.Query().Get("status")
		if status != "" && !validBatchStatus(models.BatchStatus(status)) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unknown status filter", nil)
			return
		}
		page, limit := pagination(r)

		runs, total, err := svc.List(r.Context(), store.BatchFilter{
			TenantID: tenantID,
			Status:   status,
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			slog.Error("listing batches", "tenant_id", tenantID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list batches", nil)
			return
		}
		if runs == nil {
			runs = []*models.BatchRun{}
		}

		response.Collection(w, runs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetBatchHandler returns GET /api/v1/batches/{batchID} with jobs, artifacts and failure diagnostics.
func NewGetBatchHandler(svc BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r)
		if !ok {
			return
		}
		batchID, ok := uuidParam(w, r, "batchID", "INVALID_BATCH_ID")
		if !ok {
			return
		}

		run, err := svc.Get(r.Context(), batchID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "BATCH_NOT_FOUND", "Batch not found", nil)
				return
			}
			slog.Error("fetching batch", "batch_id", batchID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch batch", nil)
			return
		}

		response.JSON(w, batchDetail{BatchRun: run, Diagnostics: diagnostics.GroupFailures(run.Jobs)})
	}
}

// NewCancelBatchHandler returns POST /api/v1/batches/{batchID}/cancel.
func NewCancelBatchHandler(svc BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := requireTenant(w, r)
		if !ok {
			return
		}
		batchID, ok := uuidParam(w, r, "batchID", "INVALID_BATCH_ID")
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), batchID, tenantID); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "BATCH_NOT_FOUND", "Batch not found", nil)
			case errors.Is(err, batch.ErrBatchNotRunning):
				response.Error(w, http.StatusConflict, "BATCH_NOT_RUNNING", "Batch is not running", nil)
			default:
				slog.Error("cancelling batch", "batch_id", batchID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel batch", nil)
			}
			return
		}

		response.Accepted(w, map[string]any{
			"id":     batchID,
			"status": "cancelling",
		})
	}
}

// splitEffects accepts both repeated values and comma-separated lists.
func splitEffects(values []string) []string {
	var out []string
	for _, v := range values {
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		}
	}
	return out
}

func validBatchStatus(s models.BatchStatus) bool {
	switch s {
	case models.BatchStatusPending, models.BatchStatusRunning, models.BatchStatusSuccess,
		models.BatchStatusPartialSuccess, models.BatchStatusFailed, models.BatchStatusCancelled:
		return true
	}
	return false
}
