package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/services"
)

const (
	defaultContactLimit  = 5
	defaultContactWindow = 10 * time.Minute
	maxContactBodyBytes  = 16 << 10
)

// ContactHandlers accepts contact form submissions.
type ContactHandlers struct {
	messages services.MessageService
	limiter  rateLimiter
}

type contactConfig struct {
	limit  int
	window time.Duration
	clock  func() time.Time
}

// ContactOption customises ContactHandlers.
type ContactOption func(*ContactHandlers, *contactConfig)

// WithContactRateLimit caps submissions per client address. A non-positive limit disables it.
func WithContactRateLimit(limit int, window time.Duration) ContactOption {
	return func(_ *ContactHandlers, cfg *contactConfig) {
		cfg.limit = limit
		cfg.window = window
	}
}

// WithContactClock overrides the limiter clock.
func WithContactClock(clock func() time.Time) ContactOption {
	return func(_ *ContactHandlers, cfg *contactConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// NewContactHandlers wires the inbox service.
func NewContactHandlers(messages services.MessageService, opts ...ContactOption) *ContactHandlers {
	h := &ContactHandlers{messages: messages}
	cfg := contactConfig{limit: defaultContactLimit, window: defaultContactWindow, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h, &cfg)
		}
	}
	h.limiter = newRateLimiter(cfg.limit, cfg.window, cfg.clock)
	return h
}

// Routes registers POST /messages.
func (h *ContactHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/messages", limitRequests(h.limiter, clientIP, h.submit))
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type messagePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
	ReadAt    string `json:"read_at,omitempty"`
}

func newMessagePayload(m domain.Message) messagePayload {
	payload := messagePayload{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Body:      m.Body,
		Read:      m.Read,
		CreatedAt: formatTimestamp(m.CreatedAt),
	}
	if m.ReadAt != nil {
		payload.ReadAt = formatTimestamp(*m.ReadAt)
	}
	return payload
}

type contactReceipt struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

func (h *ContactHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.messages == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inbox_unavailable", "message service unavailable", http.StatusServiceUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxContactBodyBytes)
	var req contactRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	msg, err := h.messages.Submit(ctx, services.ContactSubmission{
		Name:       req.Name,
		Email:      req.Email,
		Subject:    req.Subject,
		Body:       req.Body,
		RemoteAddr: clientIP(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, contactReceipt{ID: msg.ID, CreatedAt: formatTimestamp(msg.CreatedAt)})
}
