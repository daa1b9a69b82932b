package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/ga4-insight-engine/internal/analytics"
	"github.com/ignite/ga4-insight-engine/internal/config"
	"github.com/ignite/ga4-insight-engine/internal/engine"
	"github.com/ignite/ga4-insight-engine/internal/repository/postgres"
	"github.com/ignite/ga4-insight-engine/internal/storage"
)

// Runner executes one analysis over a property and its URLs.
type Runner interface {
	Run(ctx context.Context, propertyID, propertyName string, urls []string, dr analytics.DateRange) (*analytics.AnalysisResult, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	runner   Runner
	storage  *storage.Storage
	runs     *postgres.RunRepo
	analysis config.AnalysisConfig
}

// NewHandlers creates a new Handlers instance. runs may be nil when no
// database is configured; run history endpoints then return 503.
func NewHandlers(runner Runner, store *storage.Storage, runs *postgres.RunRepo, analysis config.AnalysisConfig) *Handlers {
	return &Handlers{
		runner:   runner,
		storage:  store,
		runs:     runs,
		analysis: analysis,
	}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck returns server health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// RunRequest is the body of POST /api/analysis/run. Every field falls
// back to the configured analysis defaults when omitted.
type RunRequest struct {
	PropertyID   string   `json:"property_id,omitempty"`
	PropertyName string   `json:"property_name,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
}

// RunResponse wraps a completed analysis with its run identity.
type RunResponse struct {
	RunID  string                    `json:"run_id"`
	Result *analytics.AnalysisResult `json:"result"`
}

// RunAnalysis executes a full analysis synchronously and persists the
// result.
func (h *Handlers) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	propertyID := req.PropertyID
	if propertyID == "" {
		propertyID = h.analysis.PropertyID
	}
	if propertyID == "" {
		respondError(w, http.StatusBadRequest, "property_id is required")
		return
	}
	propertyName := req.PropertyName
	if propertyName == "" {
		propertyName = h.analysis.PropertyName
	}
	if propertyName == "" {
		propertyName = propertyID
	}
	urls := req.URLs
	if len(urls) == 0 {
		urls = h.analysis.URLs
	}

	dr, err := h.resolveDateRange(req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.NewString()
	started := time.Now()
	result, err := h.runner.Run(r.Context(), propertyID, propertyName, urls, dr)
	if err != nil {
		var baseErr *engine.BaselineError
		status := http.StatusBadRequest
		if errors.As(err, &baseErr) {
			status = http.StatusBadGateway
		}
		h.recordRun(r.Context(), runID, propertyID, propertyName, dr, nil, err)
		respondError(w, status, err.Error())
		return
	}
	log.Printf("[API] run %s for %s finished in %s (%d urls)",
		runID, propertyID, time.Since(started).Round(time.Millisecond), len(urls))

	if h.storage != nil {
		if ref, err := h.storage.SaveResult(r.Context(), runID, result); err != nil {
			log.Printf("[API] failed to persist result %s: %v", runID, err)
		} else {
			log.Printf("[API] result saved to %s", ref)
		}
	}
	h.recordRun(r.Context(), runID, propertyID, propertyName, dr, result, nil)

	respondJSON(w, http.StatusOK, RunResponse{RunID: runID, Result: result})
}

func (h *Handlers) resolveDateRange(startStr, endStr string) (analytics.DateRange, error) {
	if startStr == "" && endStr == "" {
		return h.analysis.DateRange()
	}
	start, err := analytics.ParseDate(startStr)
	if err != nil {
		return analytics.DateRange{}, errors.New("invalid start_date: " + startStr)
	}
	end, err := analytics.ParseDate(endStr)
	if err != nil {
		return analytics.DateRange{}, errors.New("invalid end_date: " + endStr)
	}
	dr := analytics.DateRange{Start: start, End: end}
	return dr, dr.Validate()
}

func (h *Handlers) recordRun(ctx context.Context, runID, propertyID, propertyName string, dr analytics.DateRange, result *analytics.AnalysisResult, runErr error) {
	if h.runs == nil {
		return
	}
	run := &postgres.Run{
		ID:           runID,
		PropertyID:   propertyID,
		PropertyName: propertyName,
		StartDate:    dr.Start,
		EndDate:      dr.End,
		Status:       postgres.RunStatusCompleted,
	}
	if runErr != nil {
		run.Status = postgres.RunStatusFailed
		run.ErrorDetail = runErr.Error()
	} else if result != nil {
		run.URLCount = len(result.URLResults)
		for _, rec := range result.URLResults {
			if rec.Status == analytics.StatusError {
				run.ErrorCount++
			}
		}
		if data, err := json.Marshal(result); err == nil {
			run.Result = data
		}
	}
	if err := h.runs.Create(ctx, run); err != nil {
		log.Printf("[API] failed to record run %s: %v", runID, err)
	}
}

// LatestResult returns the most recent result for a property.
func (h *Handlers) LatestResult(w http.ResponseWriter, r *http.Request) {
	propertyID := r.URL.Query().Get("property_id")
	if propertyID == "" {
		propertyID = h.analysis.PropertyID
	}
	if propertyID == "" {
		respondError(w, http.StatusBadRequest, "property_id is required")
		return
	}
	result, ok := h.storage.Latest(propertyID)
	if !ok {
		respondError(w, http.StatusNotFound, "no results for property "+propertyID)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetRun returns one archived run by ID.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := h.runs.Get(r.Context(), id)
	if err == postgres.ErrNotFound {
		respondError(w, http.StatusNotFound, "run not found: "+id)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// ListRuns returns recent runs for a property, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	propertyID := r.URL.Query().Get("property_id")
	if propertyID == "" {
		propertyID = h.analysis.PropertyID
	}
	if propertyID == "" {
		respondError(w, http.StatusBadRequest, "property_id is required")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}
	runs, err := h.runs.List(r.Context(), propertyID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"property_id": propertyID,
		"runs":        runs,
	})
}
