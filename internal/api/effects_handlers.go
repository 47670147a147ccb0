package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/messiahcarey/deer-river/internal/effects"
	"github.com/messiahcarey/deer-river/internal/middleware"
	"github.com/messiahcarey/deer-river/internal/model"
)

// EffectsHandlers holds dependencies for effective-score HTTP handlers.
type EffectsHandlers struct {
	engine *effects.Engine
}

// NewEffectsHandlers creates a new EffectsHandlers instance.
func NewEffectsHandlers(engine *effects.Engine) *EffectsHandlers {
	return &EffectsHandlers{engine: engine}
}

// EffectiveScoreResponse represents the response for the effective score endpoint.
type EffectiveScoreResponse struct {
	FromPersonID   string   `json:"from_person_id"`
	ToPersonID     string   `json:"to_person_id"`
	Domain         string   `json:"domain"`
	AsOf           string   `json:"as_of"`
	BaseScore      float64  `json:"base_score"`
	EffectiveScore float64  `json:"effective_score"`
	EffectsApplied []string `json:"effects_applied"`
	Provenance     []string `json:"provenance"`
}

// Effective handles GET /effects/effective?from=&to=&domain=&as_of=.
// as_of is optional RFC 3339; it defaults to now.
func (h *EffectsHandlers) Effective(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	query := r.URL.Query()
	fromID := query.Get("from")
	toID := query.Get("to")
	domainStr := query.Get("domain")

	if fromID == "" || toID == "" || domainStr == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "from, to, and domain query parameters are required")
		return
	}

	domain := model.Domain(domainStr)
	if !model.ValidDomain(domain) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidDomain)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidDomain, "Unknown relationship domain")
		return
	}

	asOf := time.Now()
	if asOfStr := query.Get("as_of"); asOfStr != "" {
		parsed, err := time.Parse(time.RFC3339, asOfStr)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "as_of must be RFC 3339")
			return
		}
		asOf = parsed
	}

	result, err := h.engine.EffectiveScore(r.Context(), fromID, toID, domain, asOf)
	if err != nil {
		if errors.Is(err, effects.ErrRelationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeRelationNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeRelationNotFound, "No relationship exists for this pair and domain")
			return
		}
		slog.ErrorContext(r.Context(), "failed to compute effective score", "error", err,
			"from", fromID, "to", toID, "domain", domainStr)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute effective score")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, EffectiveScoreResponse{
		FromPersonID:   fromID,
		ToPersonID:     toID,
		Domain:         domainStr,
		AsOf:           asOf.UTC().Format(time.RFC3339),
		BaseScore:      result.BaseScore,
		EffectiveScore: result.EffectiveScore,
		EffectsApplied: result.EffectsApplied,
		Provenance:     result.Provenance,
	})
}
