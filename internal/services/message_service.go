package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/events"
	"github.com/templatemart/api/internal/platform/pagination"
	"github.com/templatemart/api/internal/repositories"
)

const (
	maxMessageNameLength    = 100
	maxMessageEmailLength   = 254
	maxMessageSubjectLength = 200
	maxMessageBodyLength    = 5000
)

var (
	// ErrMessageRepositoryMissing indicates the repository dependency is absent.
	ErrMessageRepositoryMissing = errors.New("message service: repository is not configured")
	// ErrMessageInvalidInput indicates the submission or query failed validation.
	ErrMessageInvalidInput = errors.New("message service: invalid input")
	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.New("message service: message not found")
)

// TextSanitizer strips markup from user supplied text.
type TextSanitizer interface {
	PlainText(s string) string
}

// MessageServiceDeps bundles constructor inputs for the message service.
type MessageServiceDeps struct {
	Messages  repositories.MessageRepository
	Sanitizer TextSanitizer
	Events    events.Publisher
	IDGen     func() string
	Clock     func() time.Time
}

type messageService struct {
	repo      repositories.MessageRepository
	sanitizer TextSanitizer
	events    events.Publisher
	newID     func() string
	clock     func() time.Time
}

var _ MessageService = (*messageService)(nil)

// NewMessageService constructs the message service.
func NewMessageService(deps MessageServiceDeps) (MessageService, error) {
	if deps.Messages == nil {
		return nil, ErrMessageRepositoryMissing
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	return &messageService{
		repo:      deps.Messages,
		sanitizer: deps.Sanitizer,
		events:    deps.Events,
		newID:     idGen,
		clock:     utcClock(deps.Clock),
	}, nil
}

func (s *messageService) Submit(ctx context.Context, cmd ContactSubmission) (Message, error) {
	name := s.clean(cmd.Name)
	subject := s.clean(cmd.Subject)
	body := s.clean(cmd.Body)
	email := strings.TrimSpace(cmd.Email)

	var problems []string
	switch {
	case name == "":
		problems = append(problems, "name is required")
	case utf8.RuneCountInString(name) > maxMessageNameLength:
		problems = append(problems, fmt.Sprintf("name exceeds %d characters", maxMessageNameLength))
	}
	if email == "" {
		problems = append(problems, "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email || len(email) > maxMessageEmailLength {
		problems = append(problems, "email is invalid")
	}
	if utf8.RuneCountInString(subject) > maxMessageSubjectLength {
		problems = append(problems, fmt.Sprintf("subject exceeds %d characters", maxMessageSubjectLength))
	}
	switch {
	case body == "":
		problems = append(problems, "message is required")
	case utf8.RuneCountInString(body) > maxMessageBodyLength:
		problems = append(problems, fmt.Sprintf("message exceeds %d characters", maxMessageBodyLength))
	}
	if len(problems) > 0 {
		return Message{}, fmt.Errorf("%w: %s", ErrMessageInvalidInput, strings.Join(problems, "; "))
	}

	msg := Message{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Subject:   subject,
		Body:      body,
		CreatedAt: s.clock(),
	}
	if err := s.repo.Insert(ctx, msg); err != nil {
		return Message{}, fmt.Errorf("message service: insert: %w", err)
	}

	publish(ctx, s.events, events.Event{
		Type:       events.TypeMessageReceived,
		Subject:    msg.ID,
		OccurredAt: msg.CreatedAt,
		Data:       map[string]any{"subject": msg.Subject, "from": msg.Email},
		Attributes: map[string]string{"remote_addr": strings.TrimSpace(cmd.RemoteAddr)},
	})
	return msg, nil
}

func (s *messageService) List(ctx context.Context, filter MessageListFilter) (domain.CursorPage[Message], error) {
	page, err := s.repo.List(ctx, repositories.MessageListFilter{
		UnreadOnly: filter.UnreadOnly,
		Pagination: Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[Message]{}, fmt.Errorf("%w: %v", ErrMessageInvalidInput, err)
		}
		return domain.CursorPage[Message]{}, fmt.Errorf("message service: list: %w", err)
	}
	return page, nil
}

func (s *messageService) Get(ctx context.Context, messageID string) (Message, error) {
	messageID, err := requireMessageID(messageID)
	if err != nil {
		return Message{}, err
	}
	msg, err := s.repo.Get(ctx, messageID)
	return msg, mapMessageError(err, messageID)
}

func (s *messageService) MarkRead(ctx context.Context, messageID string) (Message, error) {
	messageID, err := requireMessageID(messageID)
	if err != nil {
		return Message{}, err
	}
	msg, err := s.repo.MarkRead(ctx, messageID, s.clock())
	return msg, mapMessageError(err, messageID)
}

func (s *messageService) Delete(ctx context.Context, messageID string) error {
	messageID, err := requireMessageID(messageID)
	if err != nil {
		return err
	}
	return mapMessageError(s.repo.Delete(ctx, messageID), messageID)
}

func (s *messageService) clean(value string) string {
	value = strings.TrimSpace(value)
	if s.sanitizer != nil {
		value = strings.TrimSpace(s.sanitizer.PlainText(value))
	}
	return value
}

func requireMessageID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: message id is required", ErrMessageInvalidInput)
	}
	return id, nil
}

func mapMessageError(err error, messageID string) error {
	switch {
	case err == nil:
		return nil
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	default:
		return fmt.Errorf("message service: message %s: %w", messageID, err)
	}
}
