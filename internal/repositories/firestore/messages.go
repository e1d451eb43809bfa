package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/templatemart/api/internal/domain"
	pfirestore "github.com/templatemart/api/internal/platform/firestore"
	"github.com/templatemart/api/internal/platform/pagination"
	"github.com/templatemart/api/internal/repositories"
)

const messagesCollection = "messages"

type messageDocument struct {
	Name      string     `firestore:"name"`
	Email     string     `firestore:"email"`
	Subject   string     `firestore:"subject"`
	Body      string     `firestore:"body"`
	Read      bool       `firestore:"read"`
	CreatedAt time.Time  `firestore:"createdAt"`
	ReadAt    *time.Time `firestore:"readAt,omitempty"`
}

// MessageRepository stores contact submissions in the "messages" collection.
type MessageRepository struct {
	base *pfirestore.BaseRepository[messageDocument]
}

var _ repositories.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository binds the repository to provider.
func NewMessageRepository(provider *pfirestore.Provider) (*MessageRepository, error) {
	if provider == nil {
		return nil, errors.New("message repository requires firestore provider")
	}
	return &MessageRepository{
		base: pfirestore.NewBaseRepository[messageDocument](provider, messagesCollection, nil, nil),
	}, nil
}

// Insert stores a new message.
func (r *MessageRepository) Insert(ctx context.Context, message domain.Message) error {
	return r.base.Create(ctx, message.ID, messageDocument{
		Name:      message.Name,
		Email:     message.Email,
		Subject:   message.Subject,
		Body:      message.Body,
		Read:      message.Read,
		CreatedAt: message.CreatedAt.UTC(),
		ReadAt:    message.ReadAt,
	})
}

// List pages through messages newest first, keyed on (createdAt, document ID).
func (r *MessageRepository) List(ctx context.Context, filter repositories.MessageListFilter) (domain.CursorPage[domain.Message], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Message]{}, err
	}
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.UnreadOnly {
			q = q.Where("read", "==", false)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.CreatedAt.IsZero() && cursor.ID != "" {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Message]{}, err
	}

	page := domain.CursorPage[domain.Message]{Items: make([]domain.Message, 0, min(len(docs), limit))}
	if len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.Data.CreatedAt, ID: last.ID})
	}
	for _, doc := range docs {
		page.Items = append(page.Items, toDomainMessage(doc.ID, doc.Data))
	}
	return page, nil
}

// Get loads one message.
func (r *MessageRepository) Get(ctx context.Context, messageID string) (domain.Message, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(messageID))
	if err != nil {
		return domain.Message{}, err
	}
	return toDomainMessage(doc.ID, doc.Data), nil
}

// MarkRead flags the message as read. Already read messages keep their first read time.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID string, readAt time.Time) (domain.Message, error) {
	current, err := r.Get(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if current.Read {
		return current, nil
	}
	at := readAt.UTC()
	if err := r.base.Update(ctx, current.ID, []firestore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: at},
	}); err != nil {
		return domain.Message{}, err
	}
	current.Read = true
	current.ReadAt = &at
	return current, nil
}

// Delete removes the message.
func (r *MessageRepository) Delete(ctx context.Context, messageID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(messageID), firestore.Exists)
}

// Counts runs two count aggregations.
func (r *MessageRepository) Counts(ctx context.Context) (repositories.MessageCounts, error) {
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return repositories.MessageCounts{}, err
	}
	total, err := countQuery(ctx, coll.Query)
	if err != nil {
		return repositories.MessageCounts{}, pfirestore.WrapError(messagesCollection+".count", err)
	}
	unread, err := countQuery(ctx, coll.Where("read", "==", false))
	if err != nil {
		return repositories.MessageCounts{}, pfirestore.WrapError(messagesCollection+".count", err)
	}
	return repositories.MessageCounts{Total: total, Unread: unread}, nil
}

func countQuery(ctx context.Context, q firestore.Query) (int, error) {
	result, err := q.NewAggregationQuery().WithCount("n").Get(ctx)
	if err != nil {
		return 0, err
	}
	value, ok := result["n"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", result["n"])
	}
	return int(value.GetIntegerValue()), nil
}

func toDomainMessage(id string, doc messageDocument) domain.Message {
	return domain.Message{
		ID:        id,
		Name:      doc.Name,
		Email:     doc.Email,
		Subject:   doc.Subject,
		Body:      doc.Body,
		Read:      doc.Read,
		CreatedAt: doc.CreatedAt,
		ReadAt:    doc.ReadAt,
	}
}
