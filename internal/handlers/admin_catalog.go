package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/auth"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/services"
)

// AdminHandlers exposes the back-office API. Every route requires a Firebase identity with
// the admin role when an authenticator is configured.
type AdminHandlers struct {
	authn     *auth.Authenticator
	catalog   services.AdminCatalogService
	messages  services.MessageService
	dashboard services.DashboardService
	settings  services.SettingsService
}

// AdminOption customises AdminHandlers.
type AdminOption func(*AdminHandlers)

// WithAdminAuthenticator guards the routes with Firebase ID token verification.
func WithAdminAuthenticator(authn *auth.Authenticator) AdminOption {
	return func(h *AdminHandlers) {
		h.authn = authn
	}
}

// WithAdminCatalogService injects the template and category management service.
func WithAdminCatalogService(svc services.AdminCatalogService) AdminOption {
	return func(h *AdminHandlers) {
		h.catalog = svc
	}
}

// WithAdminMessageService injects the inbox.
func WithAdminMessageService(svc services.MessageService) AdminOption {
	return func(h *AdminHandlers) {
		h.messages = svc
	}
}

// WithAdminDashboardService injects the dashboard aggregator.
func WithAdminDashboardService(svc services.DashboardService) AdminOption {
	return func(h *AdminHandlers) {
		h.dashboard = svc
	}
}

// WithAdminSettingsService injects the settings service.
func WithAdminSettingsService(svc services.SettingsService) AdminOption {
	return func(h *AdminHandlers) {
		h.settings = svc
	}
}

// NewAdminHandlers constructs the admin handlers.
func NewAdminHandlers(opts ...AdminOption) *AdminHandlers {
	h := &AdminHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Route("/templates", func(rt chi.Router) {
		rt.Get("/", h.listTemplates)
		rt.Post("/", h.createTemplate)
		rt.Get("/{templateID}", h.getTemplate)
		rt.Put("/{templateID}", h.updateTemplate)
		rt.Delete("/{templateID}", h.deleteTemplate)
		rt.Post("/{templateID}:publish", h.publishTemplate)
		rt.Post("/{templateID}:unpublish", h.unpublishTemplate)
	})
	r.Route("/categories", func(rt chi.Router) {
		rt.Get("/", h.listCategories)
		rt.Post("/", h.createCategory)
		rt.Put("/{categoryID}", h.updateCategory)
		rt.Delete("/{categoryID}", h.deleteCategory)
	})
	r.Route("/messages", func(rt chi.Router) {
		rt.Get("/", h.listMessages)
		rt.Get("/{messageID}", h.getMessage)
		rt.Post("/{messageID}:read", h.markMessageRead)
		rt.Delete("/{messageID}", h.deleteMessage)
	})
	r.Get("/dashboard", h.dashboardStats)
	r.Get("/dashboard/snapshot", h.latestSnapshot)
	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.updateSettings)
}

type adminTemplateRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ThumbnailURL string   `json:"thumbnail_url"`
	CategoryID   string   `json:"category_id"`
	Tags         []string `json:"tags"`
	DemoURL      string   `json:"demo_url"`
	SourceURL    string   `json:"source_url"`
	DownloadURL  string   `json:"download_url"`
	Status       string   `json:"status"`
	Rating       float64  `json:"rating"`
}

func (req adminTemplateRequest) command() services.TemplateCommand {
	return services.TemplateCommand{
		Title:        req.Title,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
		CategoryID:   req.CategoryID,
		Tags:         req.Tags,
		DemoURL:      req.DemoURL,
		SourceURL:    req.SourceURL,
		DownloadURL:  req.DownloadURL,
		Status:       domain.TemplateStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Rating:       req.Rating,
	}
}

func (h *AdminHandlers) catalogReady(w http.ResponseWriter, r *http.Request) bool {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *AdminHandlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.catalogReady(w, r) {
		return
	}
	values := r.URL.Query()
	filter, err := parseTemplateListFilter(values)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}
	status := domain.TemplateStatus(strings.ToLower(strings.TrimSpace(values.Get("status"))))
	if status != "" && !status.Valid() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", "status must be draft or published", http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListTemplates(ctx, services.AdminTemplateFilter{TemplateListFilter: filter, Status: status})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateListResponse(page, true))
}

func (h *AdminHandlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	if !h.catalogReady(w, r) {
		return
	}
	template, err := h.catalog.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplatePayload(template, true))
}

func (h *AdminHandlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.catalogReady(w, r) {
		return
	}
	var req adminTemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	template, err := h.catalog.CreateTemplate(ctx, req.command())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "templates/"+template.ID)
	writeJSON(w, http.StatusCreated, newTemplatePayload(template, true))
}

func (h *AdminHandlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.catalogReady(w, r) {
		return
	}
	var req adminTemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	template, err := h.catalog.UpdateTemplate(ctx, chi.URLParam(r, "templateID"), req.command())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplatePayload(template, true))
}

func (h *AdminHandlers) publishTemplate(w http.ResponseWriter, r *http.Request) {
	h.setTemplateStatus(w, r, domain.TemplateStatusPublished)
}

func (h *AdminHandlers) unpublishTemplate(w http.ResponseWriter, r *http.Request) {
	h.setTemplateStatus(w, r, domain.TemplateStatusDraft)
}

func (h *AdminHandlers) setTemplateStatus(w http.ResponseWriter, r *http.Request, status domain.TemplateStatus) {
	if !h.catalogReady(w, r) {
		return
	}
	template, err := h.catalog.SetTemplateStatus(r.Context(), chi.URLParam(r, "templateID"), status)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplatePayload(template, true))
}

func (h *AdminHandlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if !h.catalogReady(w, r) {
		return
	}
	if err := h.catalog.DeleteTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

func (req adminCategoryRequest) command() services.CategoryCommand {
	return services.CategoryCommand{Name: req.Name, Description: req.Description, ImageURL: req.ImageURL}
}

func (h *AdminHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.catalogReady(w, r) {
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
	writeJSON(w, http.StatusOK, newCategoryListResponse(categories))
}

func (h *AdminHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.catalogReady(w, r) {
		return
	}
	var req adminCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	category, err := h.catalog.CreateCategory(ctx, req.command())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryPayload(category))
}

func (h *AdminHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.catalogReady(w, r) {
		return
	}
	var req adminCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	category, err := h.catalog.UpdateCategory(ctx, chi.URLParam(r, "categoryID"), req.command())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryPayload(category))
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if !h.catalogReady(w, r) {
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
