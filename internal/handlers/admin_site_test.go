package handlers

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t)
	submitMessages(t, env, 2)

	rr := env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/dashboard", token: "admin-token"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got := decodeBody[dashboardPayload](t, rr)
	if got.TemplateCount != 5 || got.PublishedCount != 4 || got.DraftCount != 1 {
		t.Fatalf("unexpected template counters %+v", got)
	}
	if got.CategoryCount != 3 || got.MessageCount != 2 || got.UnreadCount != 2 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if got.TotalViews != 2705 {
		t.Fatalf("expected 2705 views, got %d", got.TotalViews)
	}
	if len(got.TopTemplates) == 0 || got.TopTemplates[0].ID != "saas-landing" {
		t.Fatalf("unexpected top templates %+v", got.TopTemplates)
	}

	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/dashboard/snapshot", token: "admin-token"})
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != "snapshot_not_found" {
		t.Fatalf("expected snapshot_not_found before the first job run, got %d", rr.Code)
	}
}

func TestAdminSettings(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{method: http.MethodPut, path: "/api/v1/admin/settings", token: "admin-token", body: settingsRequest{
		SiteName:            "TemplateMart Pro",
		ContactEmail:        "team@templatemart.dev",
		HeroTitle:           "Launch faster",
		FeaturedTemplateIDs: []string{"minimal-blog"},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got := decodeBody[settingsPayload](t, rr)
	if got.UpdatedBy != "ops@templatemart.dev" || got.UpdatedAt != "2024-07-01T09:30:00Z" {
		t.Fatalf("unexpected audit fields %+v", got)
	}

	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/public/settings"})
	public := decodeBody[publicSettingsPayload](t, rr)
	want := publicSettingsPayload{
		SiteName:            "TemplateMart Pro",
		ContactEmail:        "team@templatemart.dev",
		HeroTitle:           "Launch faster",
		FeaturedTemplateIDs: []string{"minimal-blog"},
	}
	if diff := cmp.Diff(want, public); diff != "" {
		t.Fatalf("unexpected public settings (-want +got):\n%s", diff)
	}

	rr = env.do(t, testRequest{method: http.MethodPut, path: "/api/v1/admin/settings", token: "admin-token", body: settingsRequest{
		SiteName:            "TemplateMart",
		FeaturedTemplateIDs: []string{"app-launch"},
	}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for draft featured template, got %d", rr.Code)
	}
}
