package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/events"
	"github.com/templatemart/api/internal/query"
	"github.com/templatemart/api/internal/repositories"
)

const dashboardTopTemplates = 5

// ErrDashboardSnapshotMissing indicates no snapshot has been taken yet.
var ErrDashboardSnapshotMissing = errors.New("dashboard service: no snapshot recorded")

// DashboardServiceDeps bundles constructor inputs for the dashboard service.
type DashboardServiceDeps struct {
	Templates  repositories.TemplateRepository
	Categories repositories.CategoryRepository
	Messages   repositories.MessageRepository
	Stats      repositories.StatsRepository
	Events     events.Publisher
	Clock      func() time.Time
}

type dashboardService struct {
	templates  repositories.TemplateRepository
	categories repositories.CategoryRepository
	messages   repositories.MessageRepository
	stats      repositories.StatsRepository
	events     events.Publisher
	clock      func() time.Time
}

var _ DashboardService = (*dashboardService)(nil)

// NewDashboardService constructs the dashboard service.
func NewDashboardService(deps DashboardServiceDeps) (DashboardService, error) {
	if deps.Templates == nil || deps.Categories == nil || deps.Messages == nil {
		return nil, errors.New("dashboard service: template, category and message repositories are required")
	}
	return &dashboardService{
		templates:  deps.Templates,
		categories: deps.Categories,
		messages:   deps.Messages,
		stats:      deps.Stats,
		events:     deps.Events,
		clock:      utcClock(deps.Clock),
	}, nil
}

func (s *dashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard service: list templates: %w", err)
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard service: list categories: %w", err)
	}
	counts, err := s.messages.Counts(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard service: count messages: %w", err)
	}

	stats := DashboardStats{
		TemplateCount: len(templates),
		CategoryCount: len(categories),
		MessageCount:  counts.Total,
		UnreadCount:   counts.Unread,
		GeneratedAt:   s.clock(),
	}
	var ratingSum float64
	var rated int
	for _, t := range templates {
		if t.Published() {
			stats.PublishedCount++
		} else {
			stats.DraftCount++
		}
		stats.TotalViews += t.ViewCount
		if t.Rating > 0 {
			ratingSum += t.Rating
			rated++
		}
	}
	if rated > 0 {
		stats.AverageRating = math.Round(ratingSum/float64(rated)*100) / 100
	}

	popular := query.Paginate(query.Templates(templates, query.TemplateCriteria{Sort: query.SortMostPopular}), 0, dashboardTopTemplates)
	stats.TopTemplates = make([]domain.TemplateStat, 0, len(popular))
	for _, t := range popular {
		stats.TopTemplates = append(stats.TopTemplates, domain.TemplateStat{
			ID:        t.ID,
			Title:     t.Title,
			ViewCount: t.ViewCount,
			Rating:    t.Rating,
		})
	}
	return stats, nil
}

func (s *dashboardService) Snapshot(ctx context.Context) (DashboardStats, error) {
	if s.stats == nil {
		return DashboardStats{}, errors.New("dashboard service: stats repository is not configured")
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	if err := s.stats.SaveSnapshot(ctx, stats); err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard service: save snapshot: %w", err)
	}
	publish(ctx, s.events, events.Event{
		Type:       events.TypeStatsSnapshot,
		OccurredAt: stats.GeneratedAt,
		Data: map[string]any{
			"templates":  stats.TemplateCount,
			"published":  stats.PublishedCount,
			"messages":   stats.MessageCount,
			"unread":     stats.UnreadCount,
			"totalViews": stats.TotalViews,
		},
	})
	return stats, nil
}

func (s *dashboardService) LatestSnapshot(ctx context.Context) (DashboardStats, error) {
	if s.stats == nil {
		return DashboardStats{}, ErrDashboardSnapshotMissing
	}
	stats, err := s.stats.LatestSnapshot(ctx)
	if err != nil {
		if repositories.IsNotFound(err) {
			return DashboardStats{}, ErrDashboardSnapshotMissing
		}
		return DashboardStats{}, fmt.Errorf("dashboard service: latest snapshot: %w", err)
	}
	return stats, nil
}
