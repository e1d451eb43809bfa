package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document is a decoded snapshot plus its storage metadata.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// Encoder converts an entity into a Firestore-compatible value.
type Encoder[T any] func(value T) (any, error)

// Decoder hydrates an entity from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder narrows a collection query.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository wraps typed access to one collection.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	encode     Encoder[T]
	decode     Decoder[T]
}

// NewBaseRepository binds a repository to collection. Nil codecs default to the struct tags
// of T.
func NewBaseRepository[T any](provider *Provider, collection string, encode Encoder[T], decode Decoder[T]) *BaseRepository[T] {
	if encode == nil {
		encode = func(value T) (any, error) { return value, nil }
	}
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		encode:     encode,
		decode:     decode,
	}
}

// Collection reports the bound collection name.
func (r *BaseRepository[T]) Collection() string { return r.collection }

// Create writes a new document and fails with a conflict when the ID already exists.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	payload, err := r.encode(value)
	if err != nil {
		return fmt.Errorf("firestore: encode %s/%s: %w", r.collection, id, err)
	}
	if _, err := doc.Create(ctx, payload); err != nil {
		return WrapError(r.op("create"), err)
	}
	return nil
}

// Set upserts the document.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	payload, err := r.encode(value)
	if err != nil {
		return fmt.Errorf("firestore: encode %s/%s: %w", r.collection, id, err)
	}
	if _, err := doc.Set(ctx, payload, opts...); err != nil {
		return WrapError(r.op("set"), err)
	}
	return nil
}

// Update applies field updates to an existing document.
func (r *BaseRepository[T]) Update(ctx context.Context, id string, updates []firestore.Update, preconds ...firestore.Precondition) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Update(ctx, updates, preconds...); err != nil {
		return WrapError(r.op("update"), err)
	}
	return nil
}

// Get reads and decodes one document.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.Decode(snap)
}

// Delete removes the document. With an Exists precondition a missing document is not found.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string, preconds ...firestore.Precondition) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx, preconds...); err != nil {
		return WrapError(r.op("delete"), err)
	}
	return nil
}

// Query runs a collection query and decodes every match.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := r.CollectionRef(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	docs := make([]Document[T], 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		decoded, err := r.Decode(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, decoded)
	}
	return docs, nil
}

// Decode converts a snapshot read elsewhere (a transaction, for instance).
func (r *BaseRepository[T]) Decode(snap *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := r.decode(snap)
	if err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s/%s: %w", r.collection, snap.Ref.ID, err)
	}
	return Document[T]{
		ID:         snap.Ref.ID,
		Data:       entity,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}, nil
}

// CollectionRef exposes the collection for queries the helpers do not cover.
func (r *BaseRepository[T]) CollectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if r.collection == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

// DocumentRef exposes the document reference for transactions.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("document id is required"))
	}
	coll, err := r.CollectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) op(action string) string {
	return r.collection + "." + action
}

// StructDecoder decodes through the firestore struct tags of T.
func StructDecoder[T any]() Decoder[T] {
	return func(snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		err := snap.DataTo(&target)
		return target, err
	}
}
