package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/services"
)

const (
	catalogCacheControl  = "public, max-age=60"
	settingsCacheControl = "public, max-age=300"
)

// PublicHandlers exposes unauthenticated catalog endpoints.
type PublicHandlers struct {
	catalog  services.CatalogService
	assets   services.AssetService
	settings services.SettingsService
}

// PublicOption customises construction of PublicHandlers.
type PublicOption func(*PublicHandlers)

// WithPublicCatalogService injects the catalog service dependency.
func WithPublicCatalogService(svc services.CatalogService) PublicOption {
	return func(h *PublicHandlers) {
		h.catalog = svc
	}
}

// WithPublicAssetService injects the download signer.
func WithPublicAssetService(svc services.AssetService) PublicOption {
	return func(h *PublicHandlers) {
		h.assets = svc
	}
}

// WithPublicSettingsService exposes the site settings read model.
func WithPublicSettingsService(svc services.SettingsService) PublicOption {
	return func(h *PublicHandlers) {
		h.settings = svc
	}
}

// NewPublicHandlers constructs handlers for public catalog endpoints.
func NewPublicHandlers(opts ...PublicOption) *PublicHandlers {
	handler := &PublicHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Routes registers public catalog endpoints against the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/templates", h.listTemplates)
	r.Get("/templates/{templateID}", h.getTemplate)
	r.Post("/templates/{templateID}/views", h.recordView)
	r.Get("/templates/{templateID}/download", h.downloadTemplate)
	r.Get("/categories", h.listCategories)
	r.Get("/settings", h.getSettings)
}

func (h *PublicHandlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	filter, err := parseTemplateListFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListTemplates(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSON(w, http.StatusOK, newTemplateListResponse(page, false))
}

func (h *PublicHandlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	templateID := strings.TrimSpace(chi.URLParam(r, "templateID"))
	if templateID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_template_id", "template id is required", http.StatusBadRequest))
		return
	}

	template, err := h.catalog.GetTemplate(ctx, templateID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSON(w, http.StatusOK, newTemplatePayload(template, false))
}

type viewCountResponse struct {
	ID        string `json:"id"`
	ViewCount int64  `json:"view_count"`
}

func (h *PublicHandlers) recordView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	templateID := strings.TrimSpace(chi.URLParam(r, "templateID"))
	if templateID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_template_id", "template id is required", http.StatusBadRequest))
		return
	}

	count, err := h.catalog.RecordView(ctx, templateID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCountResponse{ID: templateID, ViewCount: count})
}

type downloadResponse struct {
	URL       string `json:"url"`
	Signed    bool   `json:"signed"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (h *PublicHandlers) downloadTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.assets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("download_unavailable", "downloads are not configured", http.StatusServiceUnavailable))
		return
	}
	templateID := strings.TrimSpace(chi.URLParam(r, "templateID"))
	if templateID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_template_id", "template id is required", http.StatusBadRequest))
		return
	}

	download, err := h.assets.TemplateDownload(ctx, templateID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := downloadResponse{URL: download.URL, Signed: download.Signed}
	if download.ExpiresAt != nil {
		resp.ExpiresAt = formatTimestamp(*download.ExpiresAt)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (h *PublicHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	values := r.URL.Query()
	filter := services.CategoryListFilter{Text: firstQueryValue(values, "q", "search")}
	if raw := strings.TrimSpace(values.Get("sort")); raw != "" {
		key, err := parseSortParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
			return
		}
		filter.Sort = key
	}

	categories, err := h.catalog.ListCategories(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSON(w, http.StatusOK, newCategoryListResponse(categories))
}

type publicSettingsPayload struct {
	SiteName            string   `json:"site_name"`
	ContactEmail        string   `json:"contact_email,omitempty"`
	HeroTitle           string   `json:"hero_title,omitempty"`
	HeroSubtitle        string   `json:"hero_subtitle,omitempty"`
	FeaturedTemplateIDs []string `json:"featured_template_ids"`
}

type settingsPayload struct {
	publicSettingsPayload
	UpdatedAt string `json:"updated_at,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

func newPublicSettingsPayload(s domain.Settings) publicSettingsPayload {
	return publicSettingsPayload{
		SiteName:            s.SiteName,
		ContactEmail:        s.ContactEmail,
		HeroTitle:           s.HeroTitle,
		HeroSubtitle:        s.HeroSubtitle,
		FeaturedTemplateIDs: copyStringSlice(s.FeaturedTemplateIDs),
	}
}

func newSettingsPayload(s domain.Settings) settingsPayload {
	return settingsPayload{
		publicSettingsPayload: newPublicSettingsPayload(s),
		UpdatedAt:             formatTimestamp(s.UpdatedAt),
		UpdatedBy:             s.UpdatedBy,
	}
}

func (h *PublicHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
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
	w.Header().Set("Cache-Control", settingsCacheControl)
	writeJSON(w, http.StatusOK, newPublicSettingsPayload(settings))
}
