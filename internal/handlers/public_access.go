package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/templatemart/api/internal/access"
	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/platform/session"
	"github.com/templatemart/api/internal/services"
)

const defaultAccessPerMinute = 120

// AccessHandlers feed browser input into the hidden-access detector of the caller's session.
// The session cookie is scoped to these routes so cacheable catalog responses never carry it.
type AccessHandlers struct {
	access   services.AccessService
	sessions session.Store
	limiter  rateLimiter
}

type accessConfig struct {
	perMinute int
	clock     func() time.Time
	sessions  session.Store
}

// AccessOption customises AccessHandlers.
type AccessOption func(*accessConfig)

// WithAccessRateLimit caps input events per session and minute. Zero disables limiting.
func WithAccessRateLimit(perMinute int) AccessOption {
	return func(cfg *accessConfig) {
		cfg.perMinute = perMinute
	}
}

// WithAccessClock overrides the limiter clock.
func WithAccessClock(clock func() time.Time) AccessOption {
	return func(cfg *accessConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithAccessSessions attaches the browser session store to the access routes.
func WithAccessSessions(store session.Store) AccessOption {
	return func(cfg *accessConfig) {
		cfg.sessions = store
	}
}

// NewAccessHandlers wires the access service.
func NewAccessHandlers(svc services.AccessService, opts ...AccessOption) *AccessHandlers {
	cfg := accessConfig{perMinute: defaultAccessPerMinute, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &AccessHandlers{
		access:   svc,
		sessions: cfg.sessions,
		limiter:  newRateLimiter(cfg.perMinute, time.Minute, cfg.clock),
	}
}

// Routes registers the access and navigation endpoints.
func (h *AccessHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.sessions != nil {
			g.Use(session.Middleware(h.sessions))
		}
		g.Get("/access", h.state)
		g.Post("/access/keys", limitRequests(h.limiter, sessionKey, h.key))
		g.Post("/access/clicks", limitRequests(h.limiter, sessionKey, h.click))
		g.Get("/navigation", h.navigation)
	})
}

type accessStatePayload struct {
	Elevated   bool     `json:"elevated"`
	Window     []string `json:"window"`
	ClickCount int      `json:"click_count"`
}

type accessEventResponse struct {
	accessStatePayload
	Handled     bool `json:"handled"`
	ElevatedNow bool `json:"elevated_now"`
}

func newAccessStatePayload(state domain.AccessState) accessStatePayload {
	return accessStatePayload{
		Elevated:   state.Elevated,
		Window:     copyStringSlice(state.Window),
		ClickCount: state.ClickCount,
	}
}

func newAccessEventResponse(res services.AccessResult) accessEventResponse {
	return accessEventResponse{
		accessStatePayload: newAccessStatePayload(res.State),
		Handled:            res.Handled,
		ElevatedNow:        res.ElevatedNow,
	}
}

func (h *AccessHandlers) sessionStore(w http.ResponseWriter, r *http.Request) (access.SessionStore, bool) {
	if h.access == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("access_unavailable", "access service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("session_required", "a browser session is required", http.StatusBadRequest))
		return nil, false
	}
	return sess, true
}

func (h *AccessHandlers) state(w http.ResponseWriter, r *http.Request) {
	store, ok := h.sessionStore(w, r)
	if !ok {
		return
	}
	state, err := h.access.State(r.Context(), store)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, newAccessStatePayload(state))
}

type keyEventRequest struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

func (h *AccessHandlers) key(w http.ResponseWriter, r *http.Request) {
	store, ok := h.sessionStore(w, r)
	if !ok {
		return
	}
	var req keyEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if req.Key == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "key is required", http.StatusBadRequest))
		return
	}

	res, err := h.access.Key(r.Context(), store, access.KeyEvent{
		Key:   req.Key,
		Ctrl:  req.Ctrl,
		Shift: req.Shift,
		Alt:   req.Alt,
		Meta:  req.Meta,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccessEventResponse(res))
}

type clickRequest struct {
	Target string `json:"target"`
}

func (h *AccessHandlers) click(w http.ResponseWriter, r *http.Request) {
	store, ok := h.sessionStore(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	res, err := h.access.Click(r.Context(), store, req.Target)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccessEventResponse(res))
}

type navItemPayload struct {
	Href     string `json:"href"`
	LabelKey string `json:"label_key"`
	Active   bool   `json:"active"`
	Hidden   bool   `json:"hidden,omitempty"`
}

type navigationResponse struct {
	Items []navItemPayload `json:"items"`
}

func (h *AccessHandlers) navigation(w http.ResponseWriter, r *http.Request) {
	store, ok := h.sessionStore(w, r)
	if !ok {
		return
	}
	items, err := h.access.Navigation(r.Context(), store, r.URL.Query().Get("path"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	resp := navigationResponse{Items: make([]navItemPayload, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, navItemPayload{Href: it.Href, LabelKey: it.LabelKey, Active: it.Active, Hidden: it.Hidden})
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
