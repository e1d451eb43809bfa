package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/events"
	"github.com/templatemart/api/internal/platform/pagination"
	"github.com/templatemart/api/internal/platform/requestctx"
	"github.com/templatemart/api/internal/query"
	"github.com/templatemart/api/internal/repositories"
)

var (
	// ErrCatalogRepositoryMissing indicates the repository dependency is absent.
	ErrCatalogRepositoryMissing = errors.New("catalog service: repository is not configured")
	// ErrCatalogInvalidInput indicates the caller supplied invalid data.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogTemplateNotFound indicates the template does not exist or is not visible.
	ErrCatalogTemplateNotFound = errors.New("catalog service: template not found")
	// ErrCatalogCategoryNotFound indicates the category does not exist.
	ErrCatalogCategoryNotFound = errors.New("catalog service: category not found")
	// ErrCatalogCategoryInUse indicates the category is still referenced by templates.
	ErrCatalogCategoryInUse = errors.New("catalog service: category in use")
	// ErrCatalogConflict indicates an identifier collision.
	ErrCatalogConflict = errors.New("catalog service: conflict")
)

// CatalogServiceDeps bundles constructor inputs for the public catalog service.
type CatalogServiceDeps struct {
	Templates  repositories.TemplateRepository
	Categories repositories.CategoryRepository
	Events     events.Publisher
	Clock      func() time.Time
}

type catalogService struct {
	templates  repositories.TemplateRepository
	categories repositories.CategoryRepository
	events     events.Publisher
	clock      func() time.Time
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Templates == nil || deps.Categories == nil {
		return nil, fmt.Errorf("catalog service: template and category repositories are required")
	}
	return &catalogService{
		templates:  deps.Templates,
		categories: deps.Categories,
		events:     deps.Events,
		clock:      utcClock(deps.Clock),
	}, nil
}

func (s *catalogService) ListTemplates(ctx context.Context, filter TemplateListFilter) (domain.CursorPage[Template], error) {
	templates, categories, err := loadCatalog(ctx, s.templates, s.categories)
	if err != nil {
		return domain.CursorPage[Template]{}, err
	}
	matched := query.Templates(templates, templateCriteria(filter, categories, true))
	return pageOf(matched, filter.Pagination)
}

func (s *catalogService) GetTemplate(ctx context.Context, templateID string) (Template, error) {
	template, err := s.visibleTemplate(ctx, templateID)
	if err != nil {
		return Template{}, err
	}
	return withCategoryName(ctx, s.categories, template)
}

func (s *catalogService) RecordView(ctx context.Context, templateID string) (int64, error) {
	template, err := s.visibleTemplate(ctx, templateID)
	if err != nil {
		return 0, err
	}
	count, err := s.templates.IncrementViews(ctx, template.ID)
	if err != nil {
		return 0, mapTemplateError(err, template.ID)
	}
	publish(ctx, s.events, events.Event{
		Type:       events.TypeTemplateViewed,
		Subject:    template.ID,
		OccurredAt: s.clock(),
		Data:       map[string]any{"viewCount": count, "sessionId": requestctx.SessionID(ctx)},
	})
	return count, nil
}

func (s *catalogService) ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error) {
	templates, categories, err := loadCatalog(ctx, s.templates, s.categories)
	if err != nil {
		return nil, err
	}
	counted := countTemplates(categories, query.Templates(templates, query.TemplateCriteria{PublishedOnly: true}))
	return query.Categories(counted, query.CategoryCriteria{Text: filter.Text, Sort: filter.Sort}), nil
}

func (s *catalogService) visibleTemplate(ctx context.Context, templateID string) (Template, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return Template{}, fmt.Errorf("%w: template id is required", ErrCatalogInvalidInput)
	}
	template, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return Template{}, mapTemplateError(err, templateID)
	}
	if !template.Published() {
		return Template{}, fmt.Errorf("%w: %s", ErrCatalogTemplateNotFound, templateID)
	}
	return template, nil
}

// loadCatalog fetches both collections and resolves category names.
func loadCatalog(ctx context.Context, templates repositories.TemplateRepository, categories repositories.CategoryRepository) ([]Template, []Category, error) {
	if templates == nil || categories == nil {
		return nil, nil, ErrCatalogRepositoryMissing
	}
	tpls, err := templates.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog service: list templates: %w", err)
	}
	cats, err := categories.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog service: list categories: %w", err)
	}
	return query.ResolveCategoryNames(tpls, cats), cats, nil
}

func templateCriteria(filter TemplateListFilter, categories []Category, publishedOnly bool) query.TemplateCriteria {
	return query.TemplateCriteria{
		Text:          filter.Text,
		Category:      filter.Category,
		Tags:          filter.Tags,
		PublishedOnly: publishedOnly,
		Sort:          filter.Sort,
		Categories:    categories,
	}
}

func withCategoryName(ctx context.Context, categories repositories.CategoryRepository, template Template) (Template, error) {
	template.CategoryName = domain.UncategorizedName
	id := strings.TrimSpace(template.CategoryID)
	if id == "" {
		return template, nil
	}
	category, err := categories.Get(ctx, id)
	switch {
	case err == nil:
		if strings.TrimSpace(category.Name) != "" {
			template.CategoryName = category.Name
		}
	case repositories.IsNotFound(err):
	default:
		return Template{}, fmt.Errorf("catalog service: get category: %w", err)
	}
	return template, nil
}

func countTemplates(categories []Category, templates []Template) []Category {
	counts := make(map[string]int, len(categories))
	for _, t := range templates {
		counts[strings.TrimSpace(t.CategoryID)]++
	}
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.TemplateCount = counts[c.ID]
		out[i] = c
	}
	return out
}

// pageOf slices an in-memory result with an offset page token.
func pageOf[T any](items []T, p Pagination) (domain.CursorPage[T], error) {
	cursor, err := pagination.DecodeToken(p.PageToken)
	if err != nil {
		return domain.CursorPage[T]{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	size := p.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	window := query.Paginate(items, cursor.Offset, size)
	page := domain.CursorPage[T]{Items: window}
	if next := cursor.Offset + len(window); len(window) > 0 && next < len(items) {
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{Offset: next})
	}
	return page, nil
}

func mapTemplateError(err error, templateID string) error {
	switch {
	case err == nil:
		return nil
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrCatalogTemplateNotFound, templateID)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: template %s", ErrCatalogConflict, templateID)
	default:
		return fmt.Errorf("catalog service: template %s: %w", templateID, err)
	}
}

// publish sends an event and only logs failures; events never fail the request.
func publish(ctx context.Context, publisher events.Publisher, event events.Event) {
	if publisher == nil {
		return
	}
	if _, err := publisher.Publish(ctx, event); err != nil {
		requestctx.Logger(ctx).Warn("event publish failed",
			zap.String("type", event.Type),
			zap.String("subject", event.Subject),
			zap.Error(err),
		)
	}
}

func utcClock(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time { return clock().UTC() }
}
