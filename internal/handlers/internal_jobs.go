package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/templatemart/api/internal/platform/auth"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/platform/requestctx"
	"github.com/templatemart/api/internal/services"
)

// InternalHandlers serve scheduler-triggered jobs. Callers are authenticated by the OIDC
// middleware mounted on the internal group.
type InternalHandlers struct {
	dashboard services.DashboardService
}

// NewInternalHandlers constructs the internal job handlers.
func NewInternalHandlers(dashboard services.DashboardService) *InternalHandlers {
	return &InternalHandlers{dashboard: dashboard}
}

// Routes registers internal job endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stats/snapshot", h.snapshotStats)
}

func (h *InternalHandlers) snapshotStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dashboard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_unavailable", "dashboard service unavailable", http.StatusServiceUnavailable))
		return
	}

	stats, err := h.dashboard.Snapshot(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	fields := []zap.Field{zap.Time("generatedAt", stats.GeneratedAt), zap.Int("templates", stats.TemplateCount)}
	if caller, ok := auth.ServiceIdentityFromContext(ctx); ok {
		fields = append(fields, zap.String("caller", caller.Email))
	}
	requestctx.Logger(ctx).Info("dashboard snapshot recorded", fields...)

	writeJSON(w, http.StatusCreated, newDashboardPayload(stats))
}
