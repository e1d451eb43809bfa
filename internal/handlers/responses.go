package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/platform/pagination"
	"github.com/templatemart/api/internal/platform/requestctx"
	"github.com/templatemart/api/internal/platform/textutil"
	"github.com/templatemart/api/internal/query"
	"github.com/templatemart/api/internal/repositories"
	"github.com/templatemart/api/internal/services"
)

type templatePayload struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	DescriptionHTML   string   `json:"description_html,omitempty"`
	ThumbnailURL      string   `json:"thumbnail_url,omitempty"`
	CategoryID        string   `json:"category_id,omitempty"`
	CategoryName      string   `json:"category_name"`
	Tags              []string `json:"tags"`
	DemoURL           string   `json:"demo_url,omitempty"`
	SourceURL         string   `json:"source_url,omitempty"`
	DownloadURL       string   `json:"download_url,omitempty"`
	DownloadAvailable bool     `json:"download_available"`
	Status            string   `json:"status,omitempty"`
	ViewCount         int64    `json:"view_count"`
	Rating            float64  `json:"rating"`
	CreatedAt         string   `json:"created_at,omitempty"`
	UpdatedAt         string   `json:"updated_at,omitempty"`
}

type templateListResponse struct {
	Templates     []templatePayload `json:"templates"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type categoryPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	TemplateCount int    `json:"template_count"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type categoryListResponse struct {
	Categories []categoryPayload `json:"categories"`
}

// newTemplatePayload renders a template. Admin payloads carry the raw download location and
// status; public payloads only say whether a download exists.
func newTemplatePayload(t domain.Template, admin bool) templatePayload {
	payload := templatePayload{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		DescriptionHTML:   t.DescriptionHTML,
		ThumbnailURL:      t.ThumbnailURL,
		CategoryID:        t.CategoryID,
		CategoryName:      t.CategoryName,
		Tags:              copyStringSlice(t.Tags),
		DemoURL:           t.DemoURL,
		SourceURL:         t.SourceURL,
		DownloadAvailable: strings.TrimSpace(t.DownloadURL) != "",
		ViewCount:         t.ViewCount,
		Rating:            t.Rating,
		CreatedAt:         formatTimestamp(t.CreatedAt),
		UpdatedAt:         formatTimestamp(t.UpdatedAt),
	}
	if payload.CategoryName == "" {
		payload.CategoryName = domain.UncategorizedName
	}
	if admin {
		payload.DownloadURL = t.DownloadURL
		payload.Status = string(t.Status)
	}
	return payload
}

func newTemplateListResponse(page domain.CursorPage[domain.Template], admin bool) templateListResponse {
	items := make([]templatePayload, 0, len(page.Items))
	for _, t := range page.Items {
		items = append(items, newTemplatePayload(t, admin))
	}
	return templateListResponse{Templates: items, NextPageToken: page.NextPageToken}
}

func newCategoryPayload(c domain.Category) categoryPayload {
	return categoryPayload{
		ID:            c.ID,
		Name:          c.Name,
		Description:   c.Description,
		ImageURL:      c.ImageURL,
		TemplateCount: c.TemplateCount,
		CreatedAt:     formatTimestamp(c.CreatedAt),
	}
}

func newCategoryListResponse(categories []domain.Category) categoryListResponse {
	items := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		items = append(items, newCategoryPayload(c))
	}
	return categoryListResponse{Categories: items}
}

// parseTemplateListFilter reads q, category, tag/tags, sort, pageSize and pageToken.
func parseTemplateListFilter(values url.Values) (services.TemplateListFilter, error) {
	page, err := pagination.Parse(values, pagination.Options{})
	if err != nil {
		return services.TemplateListFilter{}, err
	}
	sortKey, err := parseSortParam(values.Get("sort"))
	if err != nil {
		return services.TemplateListFilter{}, err
	}

	var tags []string
	tags = append(tags, values["tag"]...)
	for _, raw := range values["tags"] {
		tags = append(tags, textutil.SplitCSV(raw)...)
	}

	return services.TemplateListFilter{
		Text:       firstQueryValue(values, "q", "search"),
		Category:   strings.TrimSpace(values.Get("category")),
		Tags:       textutil.NormalizeList(tags),
		Sort:       sortKey,
		Pagination: domain.Pagination{PageSize: page.PageSize, PageToken: page.PageToken},
	}, nil
}

func parseSortParam(raw string) (query.SortKey, error) {
	key, ok := query.ParseSort(raw)
	if !ok {
		return "", fmt.Errorf("sort must be one of newest, oldest, mostPopular, highestRated")
	}
	return key, nil
}

// firstQueryValue returns the first non-blank value untrimmed; whitespace is significant
// in search text.
func firstQueryValue(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := values.Get(key); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// writeServiceError maps service sentinels onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput),
		errors.Is(err, services.ErrMessageInvalidInput),
		errors.Is(err, services.ErrSettingsInvalidInput),
		errors.Is(err, services.ErrAssetInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationMessage(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogTemplateNotFound), errors.Is(err, services.ErrAssetNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("template_not_found", "template not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
	case errors.Is(err, services.ErrMessageNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("message_not_found", "message not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDashboardSnapshotMissing):
		httpx.WriteError(ctx, w, httpx.NewError("snapshot_not_found", "no dashboard snapshot recorded", http.StatusNotFound))
	case errors.Is(err, services.ErrAssetUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("download_unavailable", "template has no downloadable bundle", http.StatusNotFound))
	case errors.Is(err, services.ErrAssetForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("download_forbidden", "download location is not allowed", http.StatusForbidden))
	case errors.Is(err, services.ErrCatalogCategoryInUse):
		httpx.WriteError(ctx, w, httpx.NewError("category_in_use", "category is still used by templates", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", validationMessage(err), http.StatusConflict))
	case errors.Is(err, services.ErrAccessSessionMissing):
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a browser session is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogRepositoryMissing), errors.Is(err, services.ErrMessageRepositoryMissing),
		repositories.IsUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "backing store unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		requestctx.Logger(ctx).Error("request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal error", http.StatusInternalServerError))
	}
}

// validationMessage drops the "<service>: invalid input: " prefix added by the services.
func validationMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, "invalid input: "); ok {
		return rest
	}
	if _, rest, ok := strings.Cut(msg, "conflict: "); ok {
		return rest
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func copyStringSlice(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
