// Package api provides HTTP handlers for the scoring API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/messiahcarey/deer-river/internal/middleware"
	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/scoring"
	"github.com/messiahcarey/deer-river/internal/store"
)

// ScoreReader is the read surface the score handlers need.
type ScoreReader interface {
	GetInvolvement(ctx context.Context, personID string) (*model.InvolvementScore, error)
	GetLoyalty(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error)
}

// PersonGetter verifies a person exists before score lookups.
type PersonGetter interface {
	GetPerson(ctx context.Context, id string) (*model.Person, error)
}

// ScoreHandlers holds dependencies for score HTTP handlers.
type ScoreHandlers struct {
	scores       ScoreReader
	people       PersonGetter
	orchestrator *scoring.Orchestrator
	dirtyTracker *scoring.DirtyTracker
}

// NewScoreHandlers creates a new ScoreHandlers instance.
func NewScoreHandlers(
	scores ScoreReader,
	people PersonGetter,
	orchestrator *scoring.Orchestrator,
	dirtyTracker *scoring.DirtyTracker,
) *ScoreHandlers {
	return &ScoreHandlers{
		scores:       scores,
		people:       people,
		orchestrator: orchestrator,
		dirtyTracker: dirtyTracker,
	}
}

// InvolvementResponse represents the response for the involvement endpoint.
type InvolvementResponse struct {
	PersonID   string                     `json:"person_id"`
	Score      float64                    `json:"score"`
	Breakdown  model.InvolvementBreakdown `json:"breakdown"`
	WindowDays int                        `json:"window_days"`
	Stale      bool                       `json:"stale"`
	ComputedAt string                     `json:"computed_at"`
}

// LoyaltyResponse represents the response for the loyalty endpoint.
type LoyaltyResponse struct {
	PersonID   string                 `json:"person_id"`
	TargetID   string                 `json:"target_id"`
	TargetKind string                 `json:"target_kind"`
	Score      float64                `json:"score"`
	Breakdown  model.LoyaltyBreakdown `json:"breakdown"`
	WindowDays int                    `json:"window_days"`
	Stale      bool                   `json:"stale"`
	ComputedAt string                 `json:"computed_at"`
}

// Involvement handles /scores/involvement/{personId} and
// /scores/involvement/{personId}/recalculate.
func (h *ScoreHandlers) Involvement(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/scores/involvement/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Person ID is required")
		return
	}
	personID := parts[0]

	if len(parts) == 2 && parts[1] == "recalculate" {
		h.recalculatePerson(w, r, personID)
		return
	}
	if len(parts) > 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if !h.personExists(w, r, personID) {
		return
	}

	score, err := h.scores.GetInvolvement(r.Context(), personID)
	if err != nil {
		if errors.Is(err, store.ErrScoreNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeScoreNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeScoreNotFound, "No involvement score computed yet")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve involvement score", "error", err, "person_id", personID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve involvement score")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, InvolvementResponse{
		PersonID:   score.PersonID,
		Score:      score.Score,
		Breakdown:  score.Breakdown,
		WindowDays: score.WindowDays,
		Stale:      h.dirtyTracker.IsDirty(personID),
		ComputedAt: score.ComputedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// recalculatePerson handles POST /scores/involvement/{personId}/recalculate.
// It recomputes both involvement and loyalty for the person synchronously.
func (h *ScoreHandlers) recalculatePerson(w http.ResponseWriter, r *http.Request, personID string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if err := h.orchestrator.RecalculatePersonScores(r.Context(), personID); err != nil {
		if errors.Is(err, model.ErrPersonNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePersonNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodePersonNotFound, "Person not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to recalculate person scores", "error", err, "person_id", personID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to recalculate scores")
		return
	}
	h.dirtyTracker.ClearDirty(personID)

	writeJSON(w, r.Context(), http.StatusOK, map[string]string{
		"person_id": personID,
		"status":    "recalculated",
	})
}

// Loyalty handles /scores/loyalty/{personId}/{targetId} and
// /scores/loyalty/{personId}/top.
func (h *ScoreHandlers) Loyalty(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/scores/loyalty/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Person ID is required")
		return
	}
	personID := parts[0]

	if len(parts) == 1 {
		h.listLoyalties(w, r, personID)
		return
	}
	if parts[1] == "top" {
		h.topLoyalties(w, r, personID)
		return
	}
	if parts[1] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Target ID is required")
		return
	}
	targetID := parts[1]

	if !h.personExists(w, r, personID) {
		return
	}

	score, err := h.scores.GetLoyalty(r.Context(), personID, targetID)
	if err != nil {
		if errors.Is(err, store.ErrScoreNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeScoreNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeScoreNotFound, "No loyalty score computed yet for this pair")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve loyalty score", "error", err,
			"person_id", personID, "target_id", targetID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve loyalty score")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, LoyaltyResponse{
		PersonID:   score.PersonID,
		TargetID:   score.TargetID,
		TargetKind: score.TargetKind,
		Score:      score.Score,
		Breakdown:  score.Breakdown,
		WindowDays: score.WindowDays,
		Stale:      h.dirtyTracker.IsDirty(personID),
		ComputedAt: score.ComputedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// listLoyalties handles GET /scores/loyalty/{personId}, returning every
// stored loyalty row for the person sorted strongest first.
func (h *ScoreHandlers) listLoyalties(w http.ResponseWriter, r *http.Request, personID string) {
	if !h.personExists(w, r, personID) {
		return
	}

	scores, err := h.orchestrator.TopLoyalties(r.Context(), personID, 0)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list loyalties", "error", err, "person_id", personID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list loyalties")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{
		"person_id": personID,
		"loyalties": scores,
	})
}

// topLoyalties handles GET /scores/loyalty/{personId}/top?n=.
func (h *ScoreHandlers) topLoyalties(w http.ResponseWriter, r *http.Request, personID string) {
	n := 0
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed < 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "n must be a non-negative integer")
			return
		}
		n = parsed
	}

	if !h.personExists(w, r, personID) {
		return
	}

	scores, err := h.orchestrator.TopLoyalties(r.Context(), personID, n)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list top loyalties", "error", err, "person_id", personID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list loyalties")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{
		"person_id": personID,
		"loyalties": scores,
	})
}

// RecalculateAll handles POST /scores/recalculate (population batch).
func (h *ScoreHandlers) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	result, err := h.orchestrator.RecalculateAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "batch recalculation failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to recalculate scores")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, result)
}

// Histogram handles GET /scores/histogram.
func (h *ScoreHandlers) Histogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	hist, err := h.orchestrator.Histogram(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to compute histogram", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute histogram")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"buckets": hist})
}

// personExists writes an error response and returns false when the
// person cannot be loaded.
func (h *ScoreHandlers) personExists(w http.ResponseWriter, r *http.Request, personID string) bool {
	_, err := h.people.GetPerson(r.Context(), personID)
	if err != nil {
		if errors.Is(err, model.ErrPersonNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePersonNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodePersonNotFound, "Person not found")
			return false
		}
		slog.ErrorContext(r.Context(), "failed to retrieve person", "error", err, "person_id", personID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve person")
		return false
	}
	return true
}
