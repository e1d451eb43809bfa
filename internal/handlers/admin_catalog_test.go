package handlers

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "invalid token", token: "forged", status: http.StatusUnauthorized},
		{name: "viewer role", token: "viewer-token", status: http.StatusForbidden},
		{name: "admin role", token: "admin-token", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/templates", token: tc.token})
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAdminListTemplatesIncludesDrafts(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/templates?status=draft", token: "admin-token"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[templateListResponse](t, rr)
	if diff := cmp.Diff([]string{"app-launch"}, templateIDs(resp.Templates)); diff != "" {
		t.Fatalf("unexpected drafts (-want +got):\n%s", diff)
	}
	if resp.Templates[0].Status != "draft" {
		t.Fatalf("admin payload must carry status, got %+v", resp.Templates[0])
	}

	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/templates?status=archived", token: "admin-token"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestAdminTemplateLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/admin/templates", token: "admin-token", body: adminTemplateRequest{
		Title:       "Docs Site",
		Description: "Documentation with **search**.",
		CategoryID:  "blog",
		Tags:        []string{"Docs", "markdown", "docs"},
		DownloadURL: "gs://templatemart-assets/templates/docs-site.zip",
		Rating:      4.5,
	}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBody[templatePayload](t, rr)
	if created.Status != "draft" || created.CategoryName != "Blogs" {
		t.Fatalf("unexpected created template %+v", created)
	}
	if diff := cmp.Diff([]string{"Docs", "markdown"}, created.Tags); diff != "" {
		t.Fatalf("unexpected tags (-want +got):\n%s", diff)
	}
	if created.DescriptionHTML == "" {
		t.Fatal("expected rendered description")
	}

	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/public/templates/" + created.ID})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("draft must be hidden publicly, got %d", rr.Code)
	}

	rr = env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/admin/templates/" + created.ID + ":publish", token: "admin-token"})
	if rr.Code != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/public/templates?q=docs"})
	if ids := templateIDs(decodeBody[templateListResponse](t, rr).Templates); len(ids) != 1 || ids[0] != created.ID {
		t.Fatalf("expected published template in catalog, got %v", ids)
	}

	update := adminTemplateRequest{Title: "Docs Site v2", CategoryID: "missing"}
	rr = env.do(t, testRequest{method: http.MethodPut, path: "/api/v1/admin/templates/" + created.ID, token: "admin-token", body: update})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", rr.Code)
	}

	update.CategoryID = ""
	rr = env.do(t, testRequest{method: http.MethodPut, path: "/api/v1/admin/templates/" + created.ID, token: "admin-token", body: update})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	updated := decodeBody[templatePayload](t, rr)
	if updated.Title != "Docs Site v2" || updated.Status != "published" || updated.CategoryName != "Uncategorized" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	rr = env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/admin/templates/" + created.ID + ":unpublish", token: "admin-token"})
	if got := decodeBody[templatePayload](t, rr); got.Status != "draft" {
		t.Fatalf("expected draft after unpublish, got %q", got.Status)
	}

	rr = env.do(t, testRequest{method: http.MethodDelete, path: "/api/v1/admin/templates/" + created.ID, token: "admin-token"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/templates/" + created.ID, token: "admin-token"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestAdminCreateTemplateValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  adminTemplateRequest
	}{
		{name: "missing title", req: adminTemplateRequest{}},
		{name: "rating out of range", req: adminTemplateRequest{Title: "X", Rating: 7}},
		{name: "bad status", req: adminTemplateRequest{Title: "X", Status: "archived"}},
		{name: "non web demo url", req: adminTemplateRequest{Title: "X", DemoURL: "javascript:alert(1)"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/admin/templates", token: "admin-token", body: tc.req})
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != "invalid_request" {
				t.Fatalf("expected invalid_request, got %s", code)
			}
		})
	}
}

func TestAdminCategories(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/admin/categories", token: "admin-token", body: adminCategoryRequest{Name: "Portfolios"}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBody[categoryPayload](t, rr)

	rr = env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/admin/categories", token: "admin-token", body: adminCategoryRequest{Name: "portfolios"}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", rr.Code)
	}
	rr = env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/admin/categories", token: "admin-token", body: adminCategoryRequest{Name: "Uncategorized"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reserved name, got %d", rr.Code)
	}

	rr = env.do(t, testRequest{method: http.MethodPut, path: "/api/v1/admin/categories/" + created.ID, token: "admin-token", body: adminCategoryRequest{Name: "Portfolio Sites"}})
	if got := decodeBody[categoryPayload](t, rr); rr.Code != http.StatusOK || got.Name != "Portfolio Sites" {
		t.Fatalf("unexpected update %d %+v", rr.Code, got)
	}

	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/categories", token: "admin-token"})
	counts := map[string]int{}
	for _, c := range decodeBody[categoryListResponse](t, rr).Categories {
		counts[c.ID] = c.TemplateCount
	}
	if counts["landing"] != 2 {
		t.Fatalf("admin counts include drafts, got %v", counts)
	}

	rr = env.do(t, testRequest{method: http.MethodDelete, path: "/api/v1/admin/categories/landing", token: "admin-token"})
	if rr.Code != http.StatusConflict || errorCode(t, rr) != "category_in_use" {
		t.Fatalf("expected category_in_use, got %d %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, testRequest{method: http.MethodDelete, path: "/api/v1/admin/categories/" + created.ID, token: "admin-token"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = env.do(t, testRequest{method: http.MethodDelete, path: "/api/v1/admin/categories/" + created.ID, token: "admin-token"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}
