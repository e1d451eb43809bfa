package handlers

import (
	"net/http"
	"testing"
)

func TestInternalSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, testRequest{method: http.MethodPost, path: "/api/v1/internal/stats/snapshot"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	snap := decodeBody[dashboardPayload](t, rr)
	if snap.GeneratedAt != "2024-07-01T09:30:00Z" || snap.TemplateCount != 5 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if n := env.publisher.count("stats.snapshot"); n != 1 {
		t.Fatalf("expected one snapshot event, got %d", n)
	}

	rr = env.do(t, testRequest{method: http.MethodGet, path: "/api/v1/admin/dashboard/snapshot", token: "admin-token"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected stored snapshot, got %d", rr.Code)
	}
	if got := decodeBody[dashboardPayload](t, rr); got.GeneratedAt != snap.GeneratedAt {
		t.Fatalf("unexpected latest snapshot %+v", got)
	}
}
