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
	"google.golang.org/api/iterator"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	ImageURL    string    `firestore:"imageUrl"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// CategoryRepository stores categories in the "categories" collection.
type CategoryRepository struct {
	provider  *pfirestore.Provider
	base      *pfirestore.BaseRepository[categoryDocument]
	templates *pfirestore.BaseRepository[templateDocument]
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)

// NewCategoryRepository binds the repository to provider.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		provider:  provider,
		base:      pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil),
		templates: pfirestore.NewBaseRepository[templateDocument](provider, templatesCollection, nil, nil),
	}, nil
}

// List returns categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainCategory(doc.ID, doc.Data))
	}
	return items, nil
}

// Get loads one category.
func (r *CategoryRepository) Get(ctx context.Context, categoryID string) (domain.Category, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return domain.Category{}, err
	}
	return toDomainCategory(doc.ID, doc.Data), nil
}

// Insert creates the category.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	return r.base.Create(ctx, category.ID, fromDomainCategory(category))
}

// Update rewrites the editable fields.
func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	return r.base.Update(ctx, category.ID, []firestore.Update{
		{Path: "name", Value: strings.TrimSpace(category.Name)},
		{Path: "description", Value: category.Description},
		{Path: "imageUrl", Value: category.ImageURL},
	})
}

// Delete removes the category unless a template still references it. The reference check
// and the delete share one transaction.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	categoryID = strings.TrimSpace(categoryID)
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		coll, err := r.templates.CollectionRef(ctx)
		if err != nil {
			return err
		}
		iter := tx.Documents(coll.Where("categoryId", "==", categoryID).Limit(1))
		defer iter.Stop()
		if _, err := iter.Next(); err == nil {
			return pfirestore.Conflict("", "category "+categoryID+" is still used by templates")
		} else if !errors.Is(err, iterator.Done) {
			return err
		}

		ref, err := r.base.DocumentRef(ctx, categoryID)
		if err != nil {
			return err
		}
		return tx.Delete(ref, firestore.Exists)
	}, pfirestore.WithTxOperation(categoriesCollection+".delete"))
}

func toDomainCategory(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		ImageURL:    doc.ImageURL,
		CreatedAt:   doc.CreatedAt,
	}
}

func fromDomainCategory(c domain.Category) categoryDocument {
	return categoryDocument{
		Name:        strings.TrimSpace(c.Name),
		Description: c.Description,
		ImageURL:    c.ImageURL,
		CreatedAt:   c.CreatedAt.UTC(),
	}
}
