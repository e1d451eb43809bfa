package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/templatemart/api/internal/domain"
	pfirestore "github.com/templatemart/api/internal/platform/firestore"
	"github.com/templatemart/api/internal/repositories"
)

const templatesCollection = "templates"

type templateDocument struct {
	Title           string    `firestore:"title"`
	Description     string    `firestore:"description"`
	DescriptionHTML string    `firestore:"descriptionHtml"`
	ThumbnailURL    string    `firestore:"thumbnailUrl"`
	CategoryID      string    `firestore:"categoryId"`
	Tags            []string  `firestore:"tags"`
	DemoURL         string    `firestore:"demoUrl"`
	SourceURL       string    `firestore:"sourceUrl"`
	DownloadURL     string    `firestore:"downloadUrl"`
	Status          string    `firestore:"status"`
	ViewCount       int64     `firestore:"viewCount"`
	Rating          float64   `firestore:"rating"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

// TemplateRepository stores templates in the "templates" collection.
type TemplateRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[templateDocument]
}

var _ repositories.TemplateRepository = (*TemplateRepository)(nil)

// NewTemplateRepository binds the repository to provider.
func NewTemplateRepository(provider *pfirestore.Provider) (*TemplateRepository, error) {
	if provider == nil {
		return nil, errors.New("template repository requires firestore provider")
	}
	return &TemplateRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[templateDocument](provider, templatesCollection, nil, nil),
	}, nil
}

// List returns every template ordered by creation time, newest first.
func (r *TemplateRepository) List(ctx context.Context) ([]domain.Template, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.Template, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainTemplate(doc.ID, doc.Data))
	}
	return items, nil
}

// Get loads one template.
func (r *TemplateRepository) Get(ctx context.Context, templateID string) (domain.Template, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(templateID))
	if err != nil {
		return domain.Template{}, err
	}
	return toDomainTemplate(doc.ID, doc.Data), nil
}

// Insert creates the template; an existing ID is a conflict.
func (r *TemplateRepository) Insert(ctx context.Context, template domain.Template) error {
	return r.base.Create(ctx, template.ID, fromDomainTemplate(template))
}

// Update replaces the template fields but keeps the stored view counter, which only
// IncrementViews changes.
func (r *TemplateRepository) Update(ctx context.Context, template domain.Template) error {
	doc := fromDomainTemplate(template)
	return r.base.Update(ctx, template.ID, []firestore.Update{
		{Path: "title", Value: doc.Title},
		{Path: "description", Value: doc.Description},
		{Path: "descriptionHtml", Value: doc.DescriptionHTML},
		{Path: "thumbnailUrl", Value: doc.ThumbnailURL},
		{Path: "categoryId", Value: doc.CategoryID},
		{Path: "tags", Value: doc.Tags},
		{Path: "demoUrl", Value: doc.DemoURL},
		{Path: "sourceUrl", Value: doc.SourceURL},
		{Path: "downloadUrl", Value: doc.DownloadURL},
		{Path: "status", Value: doc.Status},
		{Path: "rating", Value: doc.Rating},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	})
}

// Delete removes the template.
func (r *TemplateRepository) Delete(ctx context.Context, templateID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(templateID), firestore.Exists)
}

// IncrementViews adds one view inside a transaction and returns the new total.
func (r *TemplateRepository) IncrementViews(ctx context.Context, templateID string) (int64, error) {
	var views int64
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(templateID))
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		doc, err := r.base.Decode(snap)
		if err != nil {
			return err
		}
		views = doc.Data.ViewCount + 1
		return tx.Update(ref, []firestore.Update{{Path: "viewCount", Value: firestore.Increment(1)}})
	}, pfirestore.WithTxOperation(templatesCollection+".incrementViews"))
	if err != nil {
		return 0, err
	}
	return views, nil
}

func toDomainTemplate(id string, doc templateDocument) domain.Template {
	return domain.Template{
		ID:              id,
		Title:           doc.Title,
		Description:     doc.Description,
		DescriptionHTML: doc.DescriptionHTML,
		ThumbnailURL:    doc.ThumbnailURL,
		CategoryID:      doc.CategoryID,
		Tags:            append([]string(nil), doc.Tags...),
		DemoURL:         doc.DemoURL,
		SourceURL:       doc.SourceURL,
		DownloadURL:     doc.DownloadURL,
		Status:          domain.TemplateStatus(doc.Status),
		ViewCount:       doc.ViewCount,
		Rating:          doc.Rating,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func fromDomainTemplate(t domain.Template) templateDocument {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return templateDocument{
		Title:           t.Title,
		Description:     t.Description,
		DescriptionHTML: t.DescriptionHTML,
		ThumbnailURL:    t.ThumbnailURL,
		CategoryID:      strings.TrimSpace(t.CategoryID),
		Tags:            append([]string(nil), tags...),
		DemoURL:         t.DemoURL,
		SourceURL:       t.SourceURL,
		DownloadURL:     t.DownloadURL,
		Status:          string(t.Status),
		ViewCount:       t.ViewCount,
		Rating:          t.Rating,
		CreatedAt:       t.CreatedAt.UTC(),
		UpdatedAt:       t.UpdatedAt.UTC(),
	}
}
