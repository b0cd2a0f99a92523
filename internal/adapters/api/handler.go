// Package api exposes the process tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"procesocore/internal/blob"
	"procesocore/internal/core"
	"procesocore/internal/export"
	"procesocore/pkg/domain"
)

// ExportQueue schedules export jobs and exposes their status.
type ExportQueue interface {
	Enqueue(ctx context.Context, input export.Input) (export.Record, error)
	Get(id string) (export.Record, bool)
	List() []export.Record
}

// Handler provides HTTP access to processes, dashboard metrics, sync state,
// and exports.
type Handler struct {
	Service *core.Service
	Exports ExportQueue
	Blobs   blob.Store
}

// NewHandler constructs the API handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/processes":
		h.handleProcesses(w, r)
	case strings.HasPrefix(path, "/api/v1/processes/"):
		h.handleProcess(w, r, strings.TrimPrefix(path, "/api/v1/processes/"))
	case path == "/api/v1/dashboard":
		h.handleDashboard(w, r)
	case path == "/api/v1/sync":
		h.handleSyncStatus(w, r)
	case path == "/api/v1/sync/hydrate":
		h.handleHydrate(w, r)
	case path == "/api/v1/exports":
		h.handleExports(w, r)
	case strings.HasPrefix(path, "/api/v1/exports/"):
		h.handleExport(w, r, strings.TrimPrefix(path, "/api/v1/exports/"))
	default:
		http.NotFound(w, r)
	}
}

type createProcessRequest struct {
	Name        string          `json:"name"`
	ProcessType string          `json:"processType"`
	Budget      decimal.Decimal `json:"budget"`
}

func (h *Handler) handleProcesses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := core.ListFilter{
			Query:       r.URL.Query().Get("q"),
			ProcessType: domain.ProcessType(r.URL.Query().Get("type")),
		}
		if raw := r.URL.Query().Get("completed"); raw != "" {
			completed := raw == "true"
			filter.Completed = &completed
		}
		processes := h.Service.ListProcesses(r.Context(), filter)
		writeJSON(w, http.StatusOK, map[string]any{"processes": processes})
	case http.MethodPost:
		var req createProcessRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		record := domain.ProcessRecord{
			Name:        req.Name,
			ProcessType: domain.ProcessType(req.ProcessType),
			Budget:      req.Budget,
		}
		created, res, err := h.Service.CreateProcess(r.Context(), record)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"process": created, "violations": res.Violations})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type updateDetailsRequest struct {
	Name        *string          `json:"name"`
	ProcessType *string          `json:"processType"`
	Budget      *decimal.Decimal `json:"budget"`
}

type stageDateRequest struct {
	Date string `json:"date"`
}

type awardedAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			record, err := h.Service.GetProcess(r.Context(), id)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"process": record})
		case http.MethodPatch:
			var req updateDetailsRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			input := core.UpdateDetailsInput{Name: req.Name, Budget: req.Budget}
			if req.ProcessType != nil {
				processType := domain.ProcessType(*req.ProcessType)
				input.ProcessType = &processType
			}
			updated, res, err := h.Service.UpdateProcessDetails(r.Context(), id, input)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"process": updated, "violations": res.Violations})
		case http.MethodDelete:
			// Destructive and mirrored to the remote sheet, so the caller
			// must confirm explicitly.
			if r.URL.Query().Get("confirm") != "true" {
				writeError(w, http.StatusBadRequest, "deletion requires confirm=true")
				return
			}
			if _, err := h.Service.DeleteProcess(r.Context(), id); err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch {
	case len(segments) == 2 && segments[1] == "stages":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		statuses, err := h.Service.Stages(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stages": statuses})
	case len(segments) == 3 && segments[1] == "stages":
		stage := domain.Stage(segments[2])
		switch r.Method {
		case http.MethodPut:
			var req stageDateRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			updated, res, err := h.Service.SetStageDate(r.Context(), id, stage, req.Date)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"process": updated, "violations": res.Violations})
		case http.MethodDelete:
			updated, res, err := h.Service.ClearStageDate(r.Context(), id, stage)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"process": updated, "violations": res.Violations})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case len(segments) == 2 && segments[1] == "awarded-amount":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req awardedAmountRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, res, err := h.Service.SetFinalAwardedAmount(r.Context(), id, req.Amount)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"process": updated, "violations": res.Violations})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboard": h.Service.Dashboard(r.Context())})
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync": h.Service.SyncStatus()})
}

func (h *Handler) handleHydrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.Service.Hydrate(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync": h.Service.SyncStatus()})
}

type exportRequest struct {
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requestedBy"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"exports": h.Exports.List()})
	case http.MethodPost:
		var req exportRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		input := export.Input{RequestedBy: req.RequestedBy}
		for _, format := range req.Formats {
			input.Formats = append(input.Formats, export.Format(format))
		}
		record, err := h.Exports.Enqueue(r.Context(), input)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, remainder string) {
	if h.Exports == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	segments := strings.Split(remainder, "/")
	id := segments[0]
	record, ok := h.Exports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}

	if len(segments) == 1 {
		writeJSON(w, http.StatusOK, map[string]any{"export": record})
		return
	}
	if len(segments) != 2 || segments[1] != "download" {
		http.NotFound(w, r)
		return
	}
	h.handleExportDownload(w, r, record)
}

func (h *Handler) handleExportDownload(w http.ResponseWriter, r *http.Request, record export.Record) {
	if h.Blobs == nil {
		writeError(w, http.StatusNotFound, "artifact storage not configured")
		return
	}
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatCSV
	}
	for _, artifact := range record.Artifacts {
		if artifact.Format != format {
			continue
		}
		info, reader, err := h.Blobs.Get(r.Context(), artifact.Blob.Key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("read artifact: %v", err))
			return
		}
		defer func() { _ = reader.Close() }()
		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, reader)
		return
	}
	writeError(w, http.StatusNotFound, "artifact not found for format")
}

func decodeBody(r *http.Request, target any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var notFound core.ErrNotFound
	var unreachable core.ErrStageUnreachable
	var validation core.ErrValidation
	var ruleErr domain.RuleViolationError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &unreachable):
		writeError(w, http.StatusConflict, unreachable.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, validation.Error())
	case errors.As(err, &ruleErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      ruleErr.Error(),
			"violations": ruleErr.Result.Violations,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
