package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/messiahcarey/deer-river/internal/middleware"
)

// RouterConfig bundles the handler groups the router serves.
type RouterConfig struct {
	Scores   *ScoreHandlers
	Seeding  *SeedingHandlers
	Effects  *EffectsHandlers
	Policies *PolicyHandlers
	Health   *HealthHandlers

	// MetricsRegistry, when set, is served at /metrics.
	MetricsRegistry *prometheus.Registry
}

// NewRouter assembles the route table. Middleware is applied by the
// caller, the router only maps paths to handlers.
func NewRouter(config RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/scores/involvement/", config.Scores.Involvement)
	mux.HandleFunc("/scores/loyalty/", config.Scores.Loyalty)
	mux.HandleFunc("/scores/recalculate", config.Scores.RecalculateAll)
	mux.HandleFunc("/scores/histogram", config.Scores.Histogram)

	mux.HandleFunc("/seeding/preview", config.Seeding.Preview)
	mux.HandleFunc("/seeding/execute", config.Seeding.Execute)

	mux.HandleFunc("/effects/effective", config.Effects.Effective)

	mux.HandleFunc("/policies", config.Policies.Collection)
	mux.HandleFunc("/policies/", config.Policies.Item)

	mux.HandleFunc("/health", config.Health.Health)
	mux.HandleFunc("/ready", config.Health.Ready)

	if config.MetricsRegistry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(config.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"deer-river-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	return mux
}
