package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of items together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// TemplateStatus describes the lifecycle state of a template.
type TemplateStatus string

const (
	// TemplateStatusDraft marks templates only visible to administrators.
	TemplateStatusDraft TemplateStatus = "draft"
	// TemplateStatusPublished marks templates visible in the public catalog.
	TemplateStatusPublished TemplateStatus = "published"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TemplateStatus) Valid() bool {
	switch s {
	case TemplateStatusDraft, TemplateStatusPublished:
		return true
	default:
		return false
	}
}

// UncategorizedName is the display name used for templates without a resolvable category.
const UncategorizedName = "Uncategorized"

// Template is a website template listed in the marketplace.
type Template struct {
	ID              string
	Title           string
	Description     string
	DescriptionHTML string
	ThumbnailURL    string
	CategoryID      string
	CategoryName    string
	Tags            []string
	DemoURL         string
	SourceURL       string
	DownloadURL     string
	Status          TemplateStatus
	ViewCount       int64
	Rating          float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Published reports whether the template is visible publicly.
func (t Template) Published() bool {
	return t.Status == TemplateStatusPublished
}

// Category groups templates.
type Category struct {
	ID            string
	Name          string
	Description   string
	ImageURL      string
	TemplateCount int
	CreatedAt     time.Time
}

// Message is a contact form submission stored in the admin inbox.
type Message struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Body      string
	Read      bool
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Settings holds site wide configuration editable from the back-office.
type Settings struct {
	SiteName            string
	ContactEmail        string
	HeroTitle           string
	HeroSubtitle        string
	FeaturedTemplateIDs []string
	UpdatedAt           time.Time
	UpdatedBy           string
}

// TemplateStat is a compact template entry used in dashboard rankings.
type TemplateStat struct {
	ID        string
	Title     string
	ViewCount int64
	Rating    float64
}

// DashboardStats aggregates catalog and inbox counters for the admin dashboard.
type DashboardStats struct {
	TemplateCount  int
	PublishedCount int
	DraftCount     int
	CategoryCount  int
	MessageCount   int
	UnreadCount    int
	TotalViews     int64
	AverageRating  float64
	TopTemplates   []TemplateStat
	GeneratedAt    time.Time
}

// AccessState is the observable state of the hidden-access detector for one session.
type AccessState struct {
	Elevated   bool
	Window     []string
	ClickCount int
}

// NavItem is a rendered navigation entry.
type NavItem struct {
	Href     string
	LabelKey string
	Active   bool
	Hidden   bool
}

// Health status values reported by the readiness probe.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// HealthCheck is the outcome of one dependency probe.
type HealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency probes with build metadata.
type HealthReport struct {
	Status      string
	Checks      map[string]HealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Datastore   string
	Uptime      time.Duration
	GeneratedAt time.Time
}
