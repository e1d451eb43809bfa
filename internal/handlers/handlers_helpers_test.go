package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/templatemart/api/internal/platform/auth"
	"github.com/templatemart/api/internal/platform/events"
	"github.com/templatemart/api/internal/platform/markup"
	"github.com/templatemart/api/internal/platform/session"
	pstorage "github.com/templatemart/api/internal/platform/storage"
	"github.com/templatemart/api/internal/repositories/memory"
	"github.com/templatemart/api/internal/services"
)

var testNow = time.Date(2024, time.July, 1, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return "id", nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type stubSigner struct{}

func (stubSigner) SignedDownloadURL(_ context.Context, bucket, object string, opts pstorage.DownloadOptions) (pstorage.SignedURL, error) {
	return pstorage.SignedURL{
		URL:       "https://storage.googleapis.com/" + bucket + "/" + object + "?X-Goog-Signature=stub",
		ExpiresAt: testNow.Add(opts.ExpiresIn),
	}, nil
}

type stubTokenVerifier struct{}

func (stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	switch idToken {
	case "admin-token":
		return &firebaseauth.Token{UID: "admin-1", Claims: map[string]any{"role": "admin", "email": "ops@templatemart.dev"}}, nil
	case "viewer-token":
		return &firebaseauth.Token{UID: "viewer-1", Claims: map[string]any{"role": "viewer"}}, nil
	default:
		return nil, errors.New("bad token")
	}
}

type testEnv struct {
	registry  *memory.Registry
	publisher *recordingPublisher
	router    http.Handler
}

type testEnvOption func(*testEnvConfig)

type testEnvConfig struct {
	contactLimit int
	accessLimit  int
}

func withContactLimit(n int) testEnvOption {
	return func(c *testEnvConfig) { c.contactLimit = n }
}

func withAccessLimit(n int) testEnvOption {
	return func(c *testEnvConfig) { c.accessLimit = n }
}

func newTestEnv(t *testing.T, opts ...testEnvOption) *testEnv {
	t.Helper()
	cfg := testEnvConfig{contactLimit: 100, accessLimit: 1000}
	for _, opt := range opts {
		opt(&cfg)
	}

	seed, err := memory.DefaultSeed()
	if err != nil {
		t.Fatalf("default seed: %v", err)
	}
	registry := memory.NewRegistry(&seed, memory.WithClock(func() time.Time { return testNow }))
	publisher := &recordingPublisher{}
	clock := func() time.Time { return testNow }
	renderer := markup.NewRenderer()

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Templates: registry.Templates(), Categories: registry.Categories(), Events: publisher, Clock: clock,
	})
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	adminCatalog, err := services.NewAdminCatalogService(services.AdminCatalogServiceDeps{
		Templates: registry.Templates(), Categories: registry.Categories(), Markdown: renderer, Clock: clock,
	})
	if err != nil {
		t.Fatalf("admin catalog service: %v", err)
	}
	messages, err := services.NewMessageService(services.MessageServiceDeps{
		Messages: registry.Messages(), Sanitizer: renderer, Events: publisher, Clock: clock,
	})
	if err != nil {
		t.Fatalf("message service: %v", err)
	}
	dashboard, err := services.NewDashboardService(services.DashboardServiceDeps{
		Templates: registry.Templates(), Categories: registry.Categories(), Messages: registry.Messages(),
		Stats: registry.Stats(), Events: publisher, Clock: clock,
	})
	if err != nil {
		t.Fatalf("dashboard service: %v", err)
	}
	settings, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings: registry.Settings(), Templates: registry.Templates(), Clock: clock,
	})
	if err != nil {
		t.Fatalf("settings service: %v", err)
	}
	accessSvc, err := services.NewAccessService(services.AccessServiceDeps{Events: publisher, Clock: clock})
	if err != nil {
		t.Fatalf("access service: %v", err)
	}
	assets, err := services.NewAssetService(services.AssetServiceDeps{
		Templates: registry.Templates(), Signer: stubSigner{}, Bucket: "templatemart-assets", TTL: 10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("asset service: %v", err)
	}

	sessions, err := session.NewManager(session.Config{HashKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	public := NewPublicHandlers(
		WithPublicCatalogService(catalog),
		WithPublicAssetService(assets),
		WithPublicSettingsService(settings),
	)
	contact := NewContactHandlers(messages, WithContactRateLimit(cfg.contactLimit, time.Minute), WithContactClock(clock))
	accessHandlers := NewAccessHandlers(accessSvc,
		WithAccessRateLimit(cfg.accessLimit),
		WithAccessClock(clock),
		WithAccessSessions(sessions),
	)
	admin := NewAdminHandlers(
		WithAdminAuthenticator(auth.NewAuthenticator(stubTokenVerifier{})),
		WithAdminCatalogService(adminCatalog),
		WithAdminMessageService(messages),
		WithAdminDashboardService(dashboard),
		WithAdminSettingsService(settings),
	)

	router := NewRouter(
		WithPublicRoutes(CombineRoutes(public.Routes, contact.Routes, accessHandlers.Routes)),
		WithAdminRoutes(admin.Routes),
		WithInternalRoutes(NewInternalHandlers(dashboard).Routes),
	)
	return &testEnv{registry: registry, publisher: publisher, router: router}
}

type testRequest struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, req testRequest) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if req.body != nil {
		switch v := req.body.(type) {
		case string:
			body = bytes.NewBufferString(v)
		default:
			payload, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			body = bytes.NewReader(payload)
		}
	}
	r := httptest.NewRequest(req.method, req.path, body)
	r.RemoteAddr = "203.0.113.7:41000"
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, r)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody[map[string]any](t, rr)
	code, _ := body["error"].(string)
	return code
}

func templateIDs(items []templatePayload) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
