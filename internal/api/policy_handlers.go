package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/messiahcarey/deer-river/internal/middleware"
	"github.com/messiahcarey/deer-river/internal/model"
	"github.com/messiahcarey/deer-river/internal/store"
)

// PolicyStore is the persistence surface the policy handlers need.
type PolicyStore interface {
	ListActivePolicies(ctx context.Context) ([]model.SeedingPolicy, error)
	GetPolicy(ctx context.Context, id string) (*model.SeedingPolicy, error)
	CreatePolicy(ctx context.Context, policy *model.SeedingPolicy) error
	UpdatePolicy(ctx context.Context, policy *model.SeedingPolicy) error
}

// PolicyHandlers holds dependencies for seeding policy CRUD handlers.
type PolicyHandlers struct {
	policies PolicyStore
}

// NewPolicyHandlers creates a new PolicyHandlers instance.
func NewPolicyHandlers(policies PolicyStore) *PolicyHandlers {
	return &PolicyHandlers{policies: policies}
}

// Collection handles /policies: GET lists active policies, POST creates one.
func (h *PolicyHandlers) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// Item handles /policies/{id}: GET retrieves, PUT updates.
func (h *PolicyHandlers) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/policies/")
	if id == "" || strings.Contains(id, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Policy ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

func (h *PolicyHandlers) list(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.ListActivePolicies(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list policies", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list policies")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"policies": policies})
}

func (h *PolicyHandlers) get(w http.ResponseWriter, r *http.Request, id string) {
	policy, err := h.policies.GetPolicy(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrPolicyNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePolicyNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodePolicyNotFound, "Policy not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve policy", "error", err, "policy_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve policy")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, policy)
}

func (h *PolicyHandlers) create(w http.ResponseWriter, r *http.Request) {
	var policy model.SeedingPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	if policy.Name == "" || policy.SourceCohortID == "" || policy.TargetCohortID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "name, source_cohort_id, and target_cohort_id are required")
		return
	}
	if err := policy.Validate(); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	policy.Executed = false
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}

	if err := h.policies.CreatePolicy(r.Context(), &policy); err != nil {
		slog.ErrorContext(r.Context(), "failed to create policy", "error", err, "policy_name", policy.Name)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create policy")
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, policy)
}

func (h *PolicyHandlers) update(w http.ResponseWriter, r *http.Request, id string) {
	var policy model.SeedingPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}
	policy.ID = id

	if err := policy.Validate(); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := h.policies.UpdatePolicy(r.Context(), &policy); err != nil {
		if errors.Is(err, store.ErrPolicyNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePolicyNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodePolicyNotFound, "Policy not found")
			return
		}
		if errors.Is(err, model.ErrPolicyExecuted) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePolicyExecuted)
			WriteError(w, ctx, http.StatusConflict, ErrCodePolicyExecuted, "Policy already executed; create a new policy instead")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update policy", "error", err, "policy_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update policy")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, policy)
}
