package services

import (
	"context"
	"time"

	"github.com/templatemart/api/internal/access"
	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/query"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination     = domain.Pagination
	Template       = domain.Template
	Category       = domain.Category
	Message        = domain.Message
	Settings       = domain.Settings
	DashboardStats = domain.DashboardStats
	HealthReport   = domain.HealthReport
	AccessState    = domain.AccessState
	NavItem        = domain.NavItem
)

// CatalogService serves the public catalog. Drafts are never visible through it.
type CatalogService interface {
	ListTemplates(ctx context.Context, filter TemplateListFilter) (domain.CursorPage[Template], error)
	GetTemplate(ctx context.Context, templateID string) (Template, error)
	RecordView(ctx context.Context, templateID string) (int64, error)
	ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error)
}

// AdminCatalogService manages templates and categories from the back-office.
type AdminCatalogService interface {
	ListTemplates(ctx context.Context, filter AdminTemplateFilter) (domain.CursorPage[Template], error)
	GetTemplate(ctx context.Context, templateID string) (Template, error)
	CreateTemplate(ctx context.Context, cmd TemplateCommand) (Template, error)
	UpdateTemplate(ctx context.Context, templateID string, cmd TemplateCommand) (Template, error)
	SetTemplateStatus(ctx context.Context, templateID string, status domain.TemplateStatus) (Template, error)
	DeleteTemplate(ctx context.Context, templateID string) error
	ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error)
	CreateCategory(ctx context.Context, cmd CategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, categoryID string, cmd CategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// MessageService handles contact form submissions and the admin inbox.
type MessageService interface {
	Submit(ctx context.Context, cmd ContactSubmission) (Message, error)
	List(ctx context.Context, filter MessageListFilter) (domain.CursorPage[Message], error)
	Get(ctx context.Context, messageID string) (Message, error)
	MarkRead(ctx context.Context, messageID string) (Message, error)
	Delete(ctx context.Context, messageID string) error
}

// DashboardService aggregates catalog and inbox counters.
type DashboardService interface {
	Stats(ctx context.Context) (DashboardStats, error)
	Snapshot(ctx context.Context) (DashboardStats, error)
	LatestSnapshot(ctx context.Context) (DashboardStats, error)
}

// SettingsService reads and updates the site settings document.
type SettingsService interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, cmd SettingsCommand) (Settings, error)
}

// AccessService runs the hidden-access detector against one browser session.
type AccessService interface {
	State(ctx context.Context, store access.SessionStore) (AccessState, error)
	Key(ctx context.Context, store access.SessionStore, ev access.KeyEvent) (AccessResult, error)
	Click(ctx context.Context, store access.SessionStore, target string) (AccessResult, error)
	Navigation(ctx context.Context, store access.SessionStore, currentPath string) ([]NavItem, error)
}

// SystemService exposes operational metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}

// AssetService issues download links for template bundles.
type AssetService interface {
	TemplateDownload(ctx context.Context, templateID string) (Download, error)
}

// TemplateListFilter carries the public query criteria.
type TemplateListFilter struct {
	Text       string
	Category   string
	Tags       []string
	Sort       query.SortKey
	Pagination Pagination
}

// AdminTemplateFilter extends the public criteria with a status filter. An empty Status lists all.
type AdminTemplateFilter struct {
	TemplateListFilter
	Status domain.TemplateStatus
}

// CategoryListFilter carries category search criteria.
type CategoryListFilter struct {
	Text string
	Sort query.SortKey
}

// TemplateCommand is the editable part of a template.
type TemplateCommand struct {
	Title        string
	Description  string
	ThumbnailURL string
	CategoryID   string
	Tags         []string
	DemoURL      string
	SourceURL    string
	DownloadURL  string
	Status       domain.TemplateStatus
	Rating       float64
}

// CategoryCommand is the editable part of a category.
type CategoryCommand struct {
	Name        string
	Description string
	ImageURL    string
}

// ContactSubmission is the public contact form payload.
type ContactSubmission struct {
	Name    string
	Email   string
	Subject string
	Body    string
	// RemoteAddr is only recorded on the published event.
	RemoteAddr string
}

// MessageListFilter narrows the admin inbox.
type MessageListFilter struct {
	UnreadOnly bool
	Pagination Pagination
}

// SettingsCommand replaces the editable settings.
type SettingsCommand struct {
	SiteName            string
	ContactEmail        string
	HeroTitle           string
	HeroSubtitle        string
	FeaturedTemplateIDs []string
	ActorID             string
}

// AccessResult reports the detector state after one input event.
type AccessResult struct {
	State AccessState
	// Handled is true when the key matched the chord and the client should suppress its default action.
	Handled bool
	// ElevatedNow is true only for the event that performed the transition.
	ElevatedNow bool
}

// Download is a resolved template bundle link.
type Download struct {
	URL       string
	Signed    bool
	ExpiresAt *time.Time
}
