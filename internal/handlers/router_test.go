package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/services"
)

type stubSystemService struct {
	report services.HealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.HealthReport, error) {
	return s.report, s.err
}

func TestNewRouterDefaultMounts(t *testing.T) {
	router := NewRouter()

	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "healthz", method: http.MethodGet, path: "/healthz", status: http.StatusOK},
		{name: "readyz without checks", method: http.MethodGet, path: "/readyz", status: http.StatusOK},
		{name: "public placeholder", method: http.MethodGet, path: "/api/v1/public/templates", status: http.StatusNotImplemented},
		{name: "admin placeholder", method: http.MethodPost, path: "/api/v1/admin/templates", status: http.StatusNotImplemented},
		{name: "internal placeholder", method: http.MethodPost, path: "/api/v1/internal/stats/snapshot", status: http.StatusNotImplemented},
		{name: "unknown route", method: http.MethodGet, path: "/nope", status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestNewRouterGroupMiddlewares(t *testing.T) {
	var seen []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = append(seen, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	ok := func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	}

	router := NewRouter(
		WithPublicRoutes(CombineRoutes(ok, nil)),
		WithPublicMiddlewares(tag("public")),
		WithAdminRoutes(ok),
		WithAdminMiddlewares(tag("admin")),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/public/ping", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(seen) != 2 || seen[0] != "public" || seen[1] != "admin" {
		t.Fatalf("unexpected middleware order %v", seen)
	}
}

func TestHealthHandlersReadyz(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cases := []struct {
		name   string
		system *stubSystemService
		status int
	}{
		{name: "ok", system: &stubSystemService{report: services.HealthReport{Status: domain.HealthStatusOK, GeneratedAt: now}}, status: http.StatusOK},
		{name: "degraded stays ready", system: &stubSystemService{report: services.HealthReport{Status: domain.HealthStatusDegraded}}, status: http.StatusOK},
		{name: "error", system: &stubSystemService{report: services.HealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]domain.HealthCheck{"firestore": {Status: domain.HealthStatusError, Detail: "unavailable"}},
		}}, status: http.StatusServiceUnavailable},
		{name: "report failure", system: &stubSystemService{err: context.DeadlineExceeded}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandlers(WithHealthSystemService(tc.system), WithHealthClock(clock))
			rr := httptest.NewRecorder()
			h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	h := NewHealthHandlers(WithHealthClock(func() time.Time { return now }))
	now = start.Add(90 * time.Second)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := decodeBody[map[string]any](t, rr)
	if body["uptime"] != "1m30s" || body["timestamp"] != "2024-01-01T00:01:30Z" {
		t.Fatalf("unexpected body %v", body)
	}
}
