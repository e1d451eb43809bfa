package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/platform/requestctx"
	"github.com/templatemart/api/internal/services"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	system    services.SystemService
	startedAt time.Time
	clock     func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService enables dependency checks on /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthClock overrides the clock used for uptime.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers builds the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.clock()
	return h
}

// Healthz reports that the process is serving.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    domain.HealthStatusOK,
		"uptime":    now.Sub(h.startedAt).Truncate(time.Second).String(),
		"timestamp": formatTimestamp(now),
	})
}

// Readyz runs the dependency checks. Any failing check answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}
	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		requestctx.Logger(r.Context()).Error("health report failed", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("health_unavailable", "health report unavailable", http.StatusServiceUnavailable))
		return
	}

	checks := make(map[string]healthCheckPayload, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = healthCheckPayload{
			Status:    check.Status,
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
			CheckedAt: formatTimestamp(check.CheckedAt),
		}
	}
	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, healthReportPayload{
		Status:      report.Status,
		Checks:      checks,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Datastore:   report.Datastore,
		Uptime:      report.Uptime.Truncate(time.Second).String(),
		GeneratedAt: formatTimestamp(report.GeneratedAt),
	})
}

type healthReportPayload struct {
	Status      string                        `json:"status"`
	Checks      map[string]healthCheckPayload `json:"checks"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commit_sha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Datastore   string                        `json:"datastore,omitempty"`
	Uptime      string                        `json:"uptime"`
	GeneratedAt string                        `json:"generated_at"`
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at,omitempty"`
}
