package handlers

import (
	"net/http"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/auth"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/services"
)

type templateStatPayload struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	ViewCount int64   `json:"view_count"`
	Rating    float64 `json:"rating"`
}

type dashboardPayload struct {
	TemplateCount  int                   `json:"template_count"`
	PublishedCount int                   `json:"published_count"`
	DraftCount     int                   `json:"draft_count"`
	CategoryCount  int                   `json:"category_count"`
	MessageCount   int                   `json:"message_count"`
	UnreadCount    int                   `json:"unread_count"`
	TotalViews     int64                 `json:"total_views"`
	AverageRating  float64               `json:"average_rating"`
	TopTemplates   []templateStatPayload `json:"top_templates"`
	GeneratedAt    string                `json:"generated_at"`
}

func newDashboardPayload(stats domain.DashboardStats) dashboardPayload {
	top := make([]templateStatPayload, 0, len(stats.TopTemplates))
	for _, t := range stats.TopTemplates {
		top = append(top, templateStatPayload{ID: t.ID, Title: t.Title, ViewCount: t.ViewCount, Rating: t.Rating})
	}
	return dashboardPayload{
		TemplateCount:  stats.TemplateCount,
		PublishedCount: stats.PublishedCount,
		DraftCount:     stats.DraftCount,
		CategoryCount:  stats.CategoryCount,
		MessageCount:   stats.MessageCount,
		UnreadCount:    stats.UnreadCount,
		TotalViews:     stats.TotalViews,
		AverageRating:  stats.AverageRating,
		TopTemplates:   top,
		GeneratedAt:    formatTimestamp(stats.GeneratedAt),
	}
}

func (h *AdminHandlers) dashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dashboard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_unavailable", "dashboard service unavailable", http.StatusServiceUnavailable))
		return
	}
	stats, err := h.dashboard.Stats(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardPayload(stats))
}

func (h *AdminHandlers) latestSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dashboard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_unavailable", "dashboard service unavailable", http.StatusServiceUnavailable))
		return
	}
	stats, err := h.dashboard.LatestSnapshot(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardPayload(stats))
}

func (h *AdminHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service unavailable", http.StatusServiceUnavailable))
		return
	}
	settings, err := h.settings.Get(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsPayload(settings))
}

type settingsRequest struct {
	SiteName            string   `json:"site_name"`
	ContactEmail        string   `json:"contact_email"`
	HeroTitle           string   `json:"hero_title"`
	HeroSubtitle        string   `json:"hero_subtitle"`
	FeaturedTemplateIDs []string `json:"featured_template_ids"`
}

func (h *AdminHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var actor string
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		actor = identity.Actor()
	}

	settings, err := h.settings.Update(ctx, services.SettingsCommand{
		SiteName:            req.SiteName,
		ContactEmail:        req.ContactEmail,
		HeroTitle:           req.HeroTitle,
		HeroSubtitle:        req.HeroSubtitle,
		FeaturedTemplateIDs: req.FeaturedTemplateIDs,
		ActorID:             actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsPayload(settings))
}
