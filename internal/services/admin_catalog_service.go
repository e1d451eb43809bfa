package services

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/textutil"
	"github.com/templatemart/api/internal/query"
	"github.com/templatemart/api/internal/repositories"
)

const (
	maxTemplateTitleLength       = 120
	maxTemplateDescriptionLength = 10000
	maxTemplateTags              = 20
	maxTagLength                 = 40
	maxCategoryNameLength        = 80
	maxRating                    = 5
)

// MarkdownRenderer turns a template description into sanitised HTML.
type MarkdownRenderer interface {
	HTML(source string) (string, error)
}

// AdminCatalogServiceDeps bundles constructor inputs for the back-office catalog service.
type AdminCatalogServiceDeps struct {
	Templates  repositories.TemplateRepository
	Categories repositories.CategoryRepository
	Markdown   MarkdownRenderer
	IDGen      func() string
	Clock      func() time.Time
}

type adminCatalogService struct {
	templates  repositories.TemplateRepository
	categories repositories.CategoryRepository
	markdown   MarkdownRenderer
	newID      func() string
	clock      func() time.Time
}

var _ AdminCatalogService = (*adminCatalogService)(nil)

// NewAdminCatalogService constructs the admin catalog service.
func NewAdminCatalogService(deps AdminCatalogServiceDeps) (AdminCatalogService, error) {
	if deps.Templates == nil || deps.Categories == nil {
		return nil, fmt.Errorf("admin catalog service: template and category repositories are required")
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	return &adminCatalogService{
		templates:  deps.Templates,
		categories: deps.Categories,
		markdown:   deps.Markdown,
		newID:      idGen,
		clock:      utcClock(deps.Clock),
	}, nil
}

func (s *adminCatalogService) ListTemplates(ctx context.Context, filter AdminTemplateFilter) (domain.CursorPage[Template], error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.CursorPage[Template]{}, fmt.Errorf("%w: unknown status %q", ErrCatalogInvalidInput, filter.Status)
	}
	templates, categories, err := loadCatalog(ctx, s.templates, s.categories)
	if err != nil {
		return domain.CursorPage[Template]{}, err
	}
	if filter.Status != "" {
		kept := make([]Template, 0, len(templates))
		for _, t := range templates {
			if t.Status == filter.Status {
				kept = append(kept, t)
			}
		}
		templates = kept
	}
	matched := query.Templates(templates, templateCriteria(filter.TemplateListFilter, categories, false))
	return pageOf(matched, filter.Pagination)
}

func (s *adminCatalogService) GetTemplate(ctx context.Context, templateID string) (Template, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return Template{}, fmt.Errorf("%w: template id is required", ErrCatalogInvalidInput)
	}
	template, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return Template{}, mapTemplateError(err, templateID)
	}
	return withCategoryName(ctx, s.categories, template)
}

func (s *adminCatalogService) CreateTemplate(ctx context.Context, cmd TemplateCommand) (Template, error) {
	now := s.clock()
	template := Template{ID: s.newID(), CreatedAt: now}
	if err := s.applyTemplate(ctx, &template, cmd); err != nil {
		return Template{}, err
	}
	template.UpdatedAt = now
	if err := s.templates.Insert(ctx, template); err != nil {
		return Template{}, mapTemplateError(err, template.ID)
	}
	return withCategoryName(ctx, s.categories, template)
}

func (s *adminCatalogService) UpdateTemplate(ctx context.Context, templateID string, cmd TemplateCommand) (Template, error) {
	current, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return Template{}, err
	}
	if err := s.applyTemplate(ctx, &current, cmd); err != nil {
		return Template{}, err
	}
	current.UpdatedAt = s.clock()
	if err := s.templates.Update(ctx, current); err != nil {
		return Template{}, mapTemplateError(err, current.ID)
	}
	return withCategoryName(ctx, s.categories, current)
}

func (s *adminCatalogService) SetTemplateStatus(ctx context.Context, templateID string, status domain.TemplateStatus) (Template, error) {
	if !status.Valid() {
		return Template{}, fmt.Errorf("%w: unknown status %q", ErrCatalogInvalidInput, status)
	}
	current, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return Template{}, err
	}
	if current.Status == status {
		return current, nil
	}
	current.Status = status
	current.UpdatedAt = s.clock()
	if err := s.templates.Update(ctx, current); err != nil {
		return Template{}, mapTemplateError(err, current.ID)
	}
	return current, nil
}

func (s *adminCatalogService) DeleteTemplate(ctx context.Context, templateID string) error {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return fmt.Errorf("%w: template id is required", ErrCatalogInvalidInput)
	}
	return mapTemplateError(s.templates.Delete(ctx, templateID), templateID)
}

func (s *adminCatalogService) ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error) {
	templates, categories, err := loadCatalog(ctx, s.templates, s.categories)
	if err != nil {
		return nil, err
	}
	return query.Categories(countTemplates(categories, templates), query.CategoryCriteria{Text: filter.Text, Sort: filter.Sort}), nil
}

func (s *adminCatalogService) CreateCategory(ctx context.Context, cmd CategoryCommand) (Category, error) {
	category := Category{ID: s.newID(), CreatedAt: s.clock()}
	if err := s.applyCategory(ctx, &category, cmd); err != nil {
		return Category{}, err
	}
	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, mapCategoryError(err, category.ID)
	}
	return category, nil
}

func (s *adminCatalogService) UpdateCategory(ctx context.Context, categoryID string, cmd CategoryCommand) (Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	current, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return Category{}, mapCategoryError(err, categoryID)
	}
	if err := s.applyCategory(ctx, &current, cmd); err != nil {
		return Category{}, err
	}
	if err := s.categories.Update(ctx, current); err != nil {
		return Category{}, mapCategoryError(err, categoryID)
	}
	return current, nil
}

func (s *adminCatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	err := s.categories.Delete(ctx, categoryID)
	if repositories.IsConflict(err) {
		return fmt.Errorf("%w: %s", ErrCatalogCategoryInUse, categoryID)
	}
	return mapCategoryError(err, categoryID)
}

func (s *adminCatalogService) applyTemplate(ctx context.Context, template *Template, cmd TemplateCommand) error {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrCatalogInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxTemplateTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrCatalogInvalidInput, maxTemplateTitleLength)
	}
	description := strings.TrimSpace(cmd.Description)
	if utf8.RuneCountInString(description) > maxTemplateDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrCatalogInvalidInput, maxTemplateDescriptionLength)
	}

	status := cmd.Status
	if status == "" {
		status = template.Status
	}
	if status == "" {
		status = domain.TemplateStatusDraft
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrCatalogInvalidInput, cmd.Status)
	}

	if math.IsNaN(cmd.Rating) || cmd.Rating < 0 || cmd.Rating > maxRating {
		return fmt.Errorf("%w: rating must be between 0 and %d", ErrCatalogInvalidInput, maxRating)
	}

	tags := textutil.NormalizeList(cmd.Tags)
	if len(tags) > maxTemplateTags {
		return fmt.Errorf("%w: at most %d tags allowed", ErrCatalogInvalidInput, maxTemplateTags)
	}
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > maxTagLength {
			return fmt.Errorf("%w: tag %q exceeds %d characters", ErrCatalogInvalidInput, textutil.Truncate(tag, maxTagLength), maxTagLength)
		}
	}

	links := map[string]*string{
		"thumbnailUrl": &cmd.ThumbnailURL,
		"demoUrl":      &cmd.DemoURL,
		"sourceUrl":    &cmd.SourceURL,
	}
	for field, value := range links {
		*value = strings.TrimSpace(*value)
		if err := validateWebURL(field, *value); err != nil {
			return err
		}
	}
	download := strings.TrimSpace(cmd.DownloadURL)
	if !strings.HasPrefix(download, "gs://") {
		if err := validateWebURL("downloadUrl", download); err != nil {
			return err
		}
	}

	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID != "" {
		if _, err := s.categories.Get(ctx, categoryID); err != nil {
			if repositories.IsNotFound(err) {
				return fmt.Errorf("%w: category %s does not exist", ErrCatalogInvalidInput, categoryID)
			}
			return fmt.Errorf("admin catalog service: get category: %w", err)
		}
	}

	html := ""
	if description != "" && s.markdown != nil {
		rendered, err := s.markdown.HTML(description)
		if err != nil {
			return fmt.Errorf("admin catalog service: render description: %w", err)
		}
		html = rendered
	}

	template.Title = title
	template.Description = description
	template.DescriptionHTML = html
	template.ThumbnailURL = cmd.ThumbnailURL
	template.CategoryID = categoryID
	template.Tags = tags
	template.DemoURL = cmd.DemoURL
	template.SourceURL = cmd.SourceURL
	template.DownloadURL = download
	template.Status = status
	template.Rating = cmd.Rating
	return nil
}

func (s *adminCatalogService) applyCategory(ctx context.Context, category *Category, cmd CategoryCommand) error {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrCatalogInvalidInput, maxCategoryNameLength)
	}
	if strings.EqualFold(name, domain.UncategorizedName) || strings.EqualFold(name, query.AllCategories) {
		return fmt.Errorf("%w: %q is a reserved name", ErrCatalogInvalidInput, name)
	}
	imageURL := strings.TrimSpace(cmd.ImageURL)
	if err := validateWebURL("imageUrl", imageURL); err != nil {
		return err
	}

	// names are unique, compared case-insensitively
	existing, err := s.categories.List(ctx)
	if err != nil {
		return fmt.Errorf("admin catalog service: list categories: %w", err)
	}
	for _, other := range existing {
		if other.ID != category.ID && strings.EqualFold(strings.TrimSpace(other.Name), name) {
			return fmt.Errorf("%w: category name %q already used", ErrCatalogConflict, name)
		}
	}

	category.Name = name
	category.Description = strings.TrimSpace(cmd.Description)
	category.ImageURL = imageURL
	return nil
}

func validateWebURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute URL", ErrCatalogInvalidInput, field)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: %s must use http or https", ErrCatalogInvalidInput, field)
	}
	return nil
}

func mapCategoryError(err error, categoryID string) error {
	switch {
	case err == nil:
		return nil
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrCatalogCategoryNotFound, categoryID)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: category %s", ErrCatalogConflict, categoryID)
	default:
		return fmt.Errorf("admin catalog service: category %s: %w", categoryID, err)
	}
}
