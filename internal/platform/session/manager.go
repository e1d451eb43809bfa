package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName  = "tm_session"
	defaultCookiePath  = "/"
	defaultLifetime    = 30 * 24 * time.Hour
	defaultIdleTimeout = 7 * 24 * time.Hour
)

var (
	// ErrExpired indicates the stored session passed its idle or absolute expiry.
	ErrExpired = errors.New("session expired")
	// ErrInvalidConfig indicates missing or invalid manager options.
	ErrInvalidConfig = errors.New("session: invalid config")
)

// Data is the payload persisted in the cookie.
type Data struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"createdAt"`
	LastActive time.Time         `json:"lastActive"`
	ExpiresAt  time.Time         `json:"expiresAt,omitempty"`
	Values     map[string]string `json:"values,omitempty"`
}

// Config controls cookie encoding and lifetime.
type Config struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	IdleTimeout    time.Duration
	Lifetime       time.Duration
	Now            func() time.Time
}

// Manager encodes sessions into signed, optionally encrypted, cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{cfg: cfg, codec: codec, now: now}, nil
}

// Load decodes the request cookie. A missing or tampered cookie yields a fresh session;
// an expired one yields ErrExpired.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}
	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.New(), nil
	}
	if stored.ID == "" {
		return m.New(), nil
	}
	if m.expired(stored, m.now().UTC()) {
		return nil, ErrExpired
	}
	return &Session{data: stored}, nil
}

// New returns an empty session with a random ID.
func (m *Manager) New() *Session {
	now := m.now().UTC()
	return &Session{
		data: Data{
			ID:         mustToken(24),
			CreatedAt:  now,
			LastActive: now,
			ExpiresAt:  now.Add(m.cfg.Lifetime),
		},
		dirty: true,
	}
}

// Save touches the session and writes it as a cookie. It must run before the response
// headers are sent.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	data := sess.touch(m.now().UTC())

	encoded, err := m.codec.Encode(m.cfg.CookieName, data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	// No Expires or MaxAge: the browser drops the cookie when it closes. Idle and absolute
	// limits are enforced on Load.
	cookie := m.cookie(encoded)
	if !data.ExpiresAt.After(m.now()) {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
	return nil
}

// Destroy clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter) {
	cookie := m.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

func (m *Manager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	}
}

func (m *Manager) expired(d Data, now time.Time) bool {
	if !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt) {
		return true
	}
	last := d.LastActive
	if last.IsZero() {
		last = d.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout
}

// Session is the per-request view of a browser session. It satisfies access.SessionStore.
type Session struct {
	mu    sync.Mutex
	data  Data
	dirty bool
}

// ID returns the stable session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ID
}

// Get returns a stored value.
func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data.Values[key]
	return value, ok
}

// Set stores a value. Unchanged values do not mark the session dirty.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.data.Values[key]; ok && current == value {
		return
	}
	if s.data.Values == nil {
		s.data.Values = make(map[string]string)
	}
	s.data.Values[key] = value
	s.dirty = true
}

// Dirty reports changes made since Load.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) touch(now time.Time) Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.data.LastActive) {
		s.data.LastActive = now
	}
	out := s.data
	out.Values = make(map[string]string, len(s.data.Values))
	for k, v := range s.data.Values {
		out.Values[k] = v
	}
	return out
}

func mustToken(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("session: generate id: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
