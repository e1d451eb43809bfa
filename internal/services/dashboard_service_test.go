package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/events"
)

func TestDashboardStats(t *testing.T) {
	reg := seededRegistry(t)
	ctx := context.Background()
	if err := reg.Messages().Insert(ctx, domain.Message{ID: "m1", CreatedAt: testNow}); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	pub := &recordingPublisher{}
	svc, err := NewDashboardService(DashboardServiceDeps{
		Templates:  reg.Templates(),
		Categories: reg.Categories(),
		Messages:   reg.Messages(),
		Stats:      reg.Stats(),
		Events:     pub,
		Clock:      fixedClock,
	})
	if err != nil {
		t.Fatalf("NewDashboardService: %v", err)
	}

	if _, err := svc.LatestSnapshot(ctx); !errors.Is(err, ErrDashboardSnapshotMissing) {
		t.Fatalf("expected missing snapshot, got %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := domain.DashboardStats{
		TemplateCount:  5,
		PublishedCount: 4,
		DraftCount:     1,
		CategoryCount:  3,
		MessageCount:   1,
		UnreadCount:    1,
		TotalViews:     1280 + 940 + 410 + 75,
		AverageRating:  4.43,
		TopTemplates: []domain.TemplateStat{
			{ID: "saas-landing", Title: "SaaS Landing", ViewCount: 1280, Rating: 4.7},
			{ID: "admin-dashboard", Title: "Admin Dashboard", ViewCount: 940, Rating: 4.9},
			{ID: "minimal-blog", Title: "Minimal Blog", ViewCount: 410, Rating: 4.2},
			{ID: "portfolio-grid", Title: "Portfolio Grid", ViewCount: 75, Rating: 3.9},
			{ID: "app-launch", Title: "App Launch (WIP)", ViewCount: 0, Rating: 0},
		},
		GeneratedAt: testNow,
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("unexpected stats (-want +got):\n%s", diff)
	}

	if _, err := svc.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	latest, err := svc.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.TemplateCount != 5 {
		t.Fatalf("unexpected snapshot %+v", latest)
	}
	if got := pub.types(); len(got) != 1 || got[0] != events.TypeStatsSnapshot {
		t.Fatalf("unexpected events %v", got)
	}
}
