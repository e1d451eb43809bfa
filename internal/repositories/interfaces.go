package repositories

import (
	"context"
	"time"

	"github.com/templatemart/api/internal/domain"
)

// Registry exposes the repositories of one storage backend.
type Registry interface {
	Templates() TemplateRepository
	Categories() CategoryRepository
	Messages() MessageRepository
	Settings() SettingsRepository
	Stats() StatsRepository
	Close(ctx context.Context) error
}

// RepositoryError categorises persistence failures for the service layer.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// TemplateRepository stores marketplace templates. List returns every template regardless of
// status; filtering and ordering belong to the query engine.
type TemplateRepository interface {
	List(ctx context.Context) ([]domain.Template, error)
	Get(ctx context.Context, templateID string) (domain.Template, error)
	Insert(ctx context.Context, template domain.Template) error
	Update(ctx context.Context, template domain.Template) error
	Delete(ctx context.Context, templateID string) error
	// IncrementViews atomically adds one view and returns the new count.
	IncrementViews(ctx context.Context, templateID string) (int64, error)
}

// CategoryRepository stores template categories. Delete fails with a conflict while any
// template still references the category.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Get(ctx context.Context, categoryID string) (domain.Category, error)
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
}

// MessageListFilter narrows inbox listings. Results are ordered newest first.
type MessageListFilter struct {
	UnreadOnly bool
	Pagination domain.Pagination
}

// MessageCounts summarises the inbox.
type MessageCounts struct {
	Total  int
	Unread int
}

// MessageRepository stores contact form submissions.
type MessageRepository interface {
	Insert(ctx context.Context, message domain.Message) error
	List(ctx context.Context, filter MessageListFilter) (domain.CursorPage[domain.Message], error)
	Get(ctx context.Context, messageID string) (domain.Message, error)
	MarkRead(ctx context.Context, messageID string, readAt time.Time) (domain.Message, error)
	Delete(ctx context.Context, messageID string) error
	Counts(ctx context.Context) (MessageCounts, error)
}

// SettingsRepository stores the singleton site settings document. Get reports not found
// until the first Save.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, settings domain.Settings) error
}

// StatsRepository keeps dashboard snapshots taken by the scheduler.
type StatsRepository interface {
	SaveSnapshot(ctx context.Context, stats domain.DashboardStats) error
	LatestSnapshot(ctx context.Context) (domain.DashboardStats, error)
}

// HealthRepository probes backing services for the readiness endpoint.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
