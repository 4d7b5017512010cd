package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/user/linkchecker-service/internal/delivery/http/request"
	"github.com/user/linkchecker-service/internal/delivery/http/response"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/internal/usecase"
	"go.uber.org/zap"
)

// ReportService reads and manages the broken links report.
type ReportService interface {
	Search(ctx context.Context, filter entity.DataFilter, page, size int) (*usecase.GridPage, error)
	CSV(ctx context.Context) ([]byte, error)
	Stats(ctx context.Context) (*entity.GenerationStats, error)
	Delete(ctx context.Context) error
	IsPending(ctx context.Context) (bool, error)
}

// LinkFixer rewrites links in content.
type LinkFixer interface {
	Fix(ctx context.Context, req usecase.FixRequest) (usecase.FixResult, error)
	ReplaceByPattern(ctx context.Context, pattern, replacement string, dryRun bool) ([]usecase.UpdatedItem, error)
}

// JobService queues generation jobs and reports their state.
type JobService interface {
	Submit(ctx context.Context) (string, error)
	Latest(ctx context.Context) (*entity.JobResult, error)
	Get(ctx context.Context, id string) (*entity.JobResult, error)
}

// ContentChecker answers questions about the content tree.
type ContentChecker interface {
	Ping(ctx context.Context) error
	Exists(ctx context.Context, path string) (bool, error)
}

// QueueChecker reports the depth of the job topic. A failing call means the
// queue backend is down.
type QueueChecker interface {
	Size(ctx context.Context) (int64, error)
}

type Handler struct {
	report  ReportService
	fixer   LinkFixer
	jobs    JobService
	content ContentChecker
	queue   QueueChecker
	logger  *zap.Logger
}

func NewHandler(
	report ReportService,
	fixer LinkFixer,
	jobs JobService,
	content ContentChecker,
	queue QueueChecker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		report:  report,
		fixer:   fixer,
		jobs:    jobs,
		content: content,
		queue:   queue,
		logger:  logger,
	}
}

// HandleGenerate queues a data feed generation.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	id, err := h.jobs.Submit(r.Context())
	if err != nil {
		h.logger.Error("Failed to queue generation job", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.GenerateResponse{Status: "queued", JobID: id})
}

func (h *Handler) HandleLatestJob(w http.ResponseWriter, r *http.Request) {
	h.writeJob(w, r, func(ctx context.Context) (*entity.JobResult, error) {
		return h.jobs.Latest(ctx)
	})
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.writeJob(w, r, func(ctx context.Context) (*entity.JobResult, error) {
		return h.jobs.Get(ctx, id)
	})
}

func (h *Handler) writeJob(w http.ResponseWriter, r *http.Request, get func(context.Context) (*entity.JobResult, error)) {
	job, err := get(r.Context())
	if errors.Is(err, repository.ErrJobNotFound) {
		h.writeJSONError(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read job", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewJobResponse(job))
}

// HandleFixLink replaces a link at one location. Status codes follow the
// outcome: 422 blank parameters, 202 nothing to change, 400 invalid new link,
// 200 replaced, 204 current link not found, 500 persistence failure.
func (h *Handler) HandleFixLink(w http.ResponseWriter, r *http.Request) {
	req, err := request.DecodeFixLink(r)
	if err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.fixer.Fix(r.Context(), usecase.FixRequest{
		Path:           req.Path,
		PropertyName:   req.PropertyName,
		CurrentLink:    req.CurrentLink,
		NewLink:        req.NewLink,
		SkipValidation: req.SkipValidation,
	})
	if err != nil {
		h.logger.Error("Failed to replace link",
			zap.String("path", req.Path), zap.String("property", req.PropertyName), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, response.StatusResponse{
			StatusCode:    http.StatusInternalServerError,
			StatusMessage: err.Error(),
		})
		return
	}

	switch res.Outcome {
	case usecase.FixInvalidRequest:
		w.WriteHeader(http.StatusUnprocessableEntity)
	case usecase.FixUnchanged:
		w.WriteHeader(http.StatusAccepted)
	case usecase.FixNotReplaced:
		w.WriteHeader(http.StatusNoContent)
	case usecase.FixInvalidLink:
		h.writeJSON(w, http.StatusBadRequest, statusResponse(res.Status))
	default:
		h.writeJSON(w, http.StatusOK, statusResponse(res.Status))
	}
}

// HandleReplaceByPattern rewrites every reported link matching a pattern.
// It answers 400 for blank or invalid parameters, 202 when pattern and
// replacement are equal and 204 when nothing was updated.
func (h *Handler) HandleReplaceByPattern(w http.ResponseWriter, r *http.Request) {
	req, err := request.DecodeReplaceByPattern(r)
	if err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Pattern) == "" || strings.TrimSpace(req.Replacement) == "" {
		h.writeJSONError(w, "pattern and replacement are required", http.StatusBadRequest)
		return
	}
	if req.Pattern == req.Replacement {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	items, err := h.fixer.ReplaceByPattern(r.Context(), req.Pattern, req.Replacement, req.DryRun)
	if errors.Is(err, usecase.ErrInvalidPattern) {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("Failed to replace links by pattern", zap.String("pattern", req.Pattern), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if req.OutputAsCSV {
		h.writeCSV(w, "updated_links.csv", usecase.BuildUpdatedItemsCSV(items))
		return
	}
	h.writeJSON(w, http.StatusOK, response.UpdatedItemsResponse{UpdatedItemsCount: len(items)})
}

// HandleGetReport serves a page of report rows, optionally filtered by type
// and by a substring of the link or the resource path.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := entity.DataFilter{Type: q.Get("type"), Substring: q.Get("search")}
	page, err := h.report.Search(r.Context(), filter,
		request.IntParam(r, "page", 1), request.IntParam(r, "size", 0))
	if err != nil {
		h.logger.Error("Failed to read report", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	items := make([]response.GridRow, 0, len(page.Rows))
	for _, row := range page.Rows {
		items = append(items, response.NewGridRow(row))
	}
	h.writeJSON(w, http.StatusOK, response.ReportPage{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Size:  page.Size,
	})
}

func (h *Handler) HandleDownloadReport(w http.ResponseWriter, r *http.Request) {
	data, err := h.report.CSV(r.Context())
	if errors.Is(err, usecase.ErrNoReport) {
		h.writeJSONError(w, "Report has not been generated", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read CSV report", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeCSV(w, "broken_links_report.csv", data)
}

func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.report.Stats(r.Context())
	if errors.Is(err, usecase.ErrNoReport) {
		h.writeJSONError(w, "Report has not been generated", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read generation stats", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.report.Delete(r.Context()); err != nil {
		h.logger.Error("Failed to delete report", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandlePending answers 200 when the report is stale and 204 otherwise.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.report.IsPending(r.Context())
	if err != nil {
		h.logger.Error("Failed to check pending generation", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !pending {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, response.PendingResponse{Pending: true})
}

func (h *Handler) HandleResourceExists(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = r.FormValue("path")
	}
	if strings.TrimSpace(path) == "" {
		h.writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	exists, err := h.content.Exists(r.Context(), path)
	if err != nil {
		h.logger.Error("Failed to check resource", zap.String("path", path), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.ResourceExistsResponse{ResourceExists: exists})
}

// HandleHealthCheck pings the content repository and the job queue.
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := response.HealthResponse{Status: "ok", Dependencies: map[string]string{}}
	status := http.StatusOK

	if err := h.content.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check: content repository is down", zap.Error(err))
		resp.Dependencies["content"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		resp.Dependencies["content"] = "up"
	}
	if _, err := h.queue.Size(r.Context()); err != nil {
		h.logger.Warn("Health check: job queue is down", zap.Error(err))
		resp.Dependencies["queue"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		resp.Dependencies["queue"] = "up"
	}
	if status != http.StatusOK {
		resp.Status = "unavailable"
	}
	h.writeJSON(w, status, resp)
}

func statusResponse(s entity.Status) response.StatusResponse {
	return response.StatusResponse{StatusCode: s.Code, StatusMessage: s.Message}
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write CSV response", zap.Error(err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
