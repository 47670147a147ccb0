package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/messiahcarey/deer-river/internal/middleware"
	"github.com/messiahcarey/deer-river/internal/seeding"
)

// SeedingHandlers holds dependencies for seeding HTTP handlers.
type SeedingHandlers struct {
	engine *seeding.Engine
}

// NewSeedingHandlers creates a new SeedingHandlers instance.
func NewSeedingHandlers(engine *seeding.Engine) *SeedingHandlers {
	return &SeedingHandlers{engine: engine}
}

// SeedingRequest is the request body for preview and execute runs.
type SeedingRequest struct {
	WorldSeed string `json:"world_seed"`
}

// Preview handles POST /seeding/preview. It runs all active policies
// without persisting anything.
func (h *SeedingHandlers) Preview(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, true)
}

// Execute handles POST /seeding/execute. It runs all active policies and
// persists the generated relationships.
func (h *SeedingHandlers) Execute(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, false)
}

func (h *SeedingHandlers) run(w http.ResponseWriter, r *http.Request, dryRun bool) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req SeedingRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
			return
		}
	}
	if req.WorldSeed == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "world_seed is required")
		return
	}

	var result *seeding.Result
	if dryRun {
		result = h.engine.Preview(r.Context(), req.WorldSeed)
	} else {
		result = h.engine.Execute(r.Context(), req.WorldSeed)
	}

	slog.InfoContext(r.Context(), "seeding run handled",
		"dry_run", dryRun,
		"relationships_created", result.RelationshipsCreated,
		"errors", len(result.Errors))

	writeJSON(w, r.Context(), http.StatusOK, result)
}
