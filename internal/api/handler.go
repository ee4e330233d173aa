package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pagewatch/shrike/internal/domain"
	"github.com/pagewatch/shrike/internal/pipeline"
	"github.com/pagewatch/shrike/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	store   *rules.Store
	checker *pipeline.Checker
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, store *rules.Store, checker *pipeline.Checker, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		store:   store,
		checker: checker,
		version: version,
	}
}

// CheckRequest is the request body for POST /check.
type CheckRequest struct {
	Text     string `json:"text"`
	PostType string `json:"postType,omitempty"`
}

// CheckResponse is the response for POST /check.
type CheckResponse struct {
	CheckID  string         `json:"checkId"`
	Score    int            `json:"score"`
	Category string         `json:"category"`
	Label    string         `json:"label"`
	Alerted  bool           `json:"wouldAlert"`
	Reason   string         `json:"reason"`
	Matches  []domain.Match `json:"matches,omitempty"`
	Metadata struct {
		TraceID        string `json:"traceId"`
		RulesEvaluated int    `json:"rulesEvaluated"`
		DetectMs       int64  `json:"detectMs"`
		Version        string `json:"version"`
	} `json:"metadata"`
}

// Check handles POST /check: runs detection over submitted text without
// fetching, alerting, or touching seen markers. The audit trail still
// records the check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageID := GetPageID(ctx)
	traceID := GetTraceID(ctx)

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "text is required",
		})
		return
	}

	rec := h.checker.Evaluate(rules.Input{
		Text:     req.Text,
		PostType: req.PostType,
		PageID:   pageID,
	})
	rec.Metadata.TraceID = traceID

	if h.repo != nil {
		if err := h.repo.SaveCheck(ctx, pageID, rec); err != nil {
			slog.Error("failed to save check", "check_id", rec.ID, "error", err)
		}
	}

	resp := CheckResponse{
		CheckID:  rec.ID,
		Score:    rec.Score,
		Category: rec.Category,
		Label:    string(rec.Label),
		Alerted:  rec.Alerted,
		Reason:   rec.Reason,
		Matches:  rec.Matches,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.RulesEvaluated = rec.Metadata.RulesEvaluated
	resp.Metadata.DetectMs = rec.Metadata.DetectMs
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// RunRequest is the request body for POST /run.
type RunRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RunBatch handles POST /run: triggers one synchronous batch run of the
// pipeline against the configured page feed.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	report, err := h.checker.Run(ctx, req.Limit)
	if err != nil {
		slog.Error("batch run failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "batch run failed: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetCheck retrieves a check record by ID.
func (h *Handler) GetCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageID := GetPageID(ctx)
	checkID := chi.URLParam(r, "id")

	if checkID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "check id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetCheck(ctx, pageID, checkID)
	if err != nil {
		slog.Error("failed to get check", "id", checkID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "check not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListChecks retrieves check records for the page, optionally filtered
// with ?since=RFC3339. Defaults to the last 24 hours.
func (h *Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageID := GetPageID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	records, err := h.repo.ListChecks(ctx, pageID, since)
	if err != nil {
		slog.Error("failed to list checks", "page_id", pageID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list checks",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"checks": records,
		"count":  len(records),
	})
}

// GetPost retrieves a stored post by ID.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageID := GetPageID(ctx)
	postID := chi.URLParam(r, "id")

	if postID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "post id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	post, err := h.repo.GetPost(ctx, pageID, postID)
	if err != nil {
		slog.Error("failed to get post", "id", postID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "post not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// ListRules returns the rules in the active set.
// Rules are loaded at startup and can be swapped via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rs := h.store.Active()
	loaded := rs.Rules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":   loaded,
		"count":   len(loaded),
		"version": rs.Version,
	})
}

// GetRule retrieves a rule by ID from the active set.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.store.Active().Rules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID         string `json:"id"`
	Keyword    string `json:"keyword,omitempty"`
	IsRegex    bool   `json:"is_regex,omitempty"`
	Expression string `json:"expression,omitempty"`
	Category   string `json:"category"`
	RiskScore  int    `json:"risk_score"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// CreateRule validates a rule and saves it to the database. Rules are
// global and apply to all pages. After saving, call POST /rules/reload
// to hot-reload the active set.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}
	if req.Keyword == "" && req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "keyword or expression is required",
		})
		return
	}

	rule := &domain.Rule{
		ID:         req.ID,
		Keyword:    req.Keyword,
		IsRegex:    req.IsRegex,
		Expression: req.Expression,
		Category:   req.Category,
		RiskScore:  req.RiskScore,
		Enabled:    true,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	// Reject rules that would be dropped at compile time
	if err := h.store.Validate(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRule(ctx, rule); err != nil {
			slog.Error("failed to save rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", rule.ID, "category", rule.Category)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule removes a rule from the database.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteRule(ctx, ruleID); err != nil {
		slog.Error("failed to delete rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	slog.Info("rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules rebuilds the active rule set from the database.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRules(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	rs := h.store.Compile(dbRules)
	h.store.Activate(rs)

	slog.Info("rules reloaded from database", "loaded", len(dbRules), "active", rs.Len())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   rs.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
