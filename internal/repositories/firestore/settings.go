package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/templatemart/api/internal/domain"
	pfirestore "github.com/templatemart/api/internal/platform/firestore"
	"github.com/templatemart/api/internal/repositories"
)

const (
	settingsCollection = "settings"
	settingsDocID      = "site"
	statsCollection    = "dashboardSnapshots"
)

type settingsDocument struct {
	SiteName            string    `firestore:"siteName"`
	ContactEmail        string    `firestore:"contactEmail"`
	HeroTitle           string    `firestore:"heroTitle"`
	HeroSubtitle        string    `firestore:"heroSubtitle"`
	FeaturedTemplateIDs []string  `firestore:"featuredTemplateIds"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
	UpdatedBy           string    `firestore:"updatedBy"`
}

// SettingsRepository keeps site settings in settings/site.
type SettingsRepository struct {
	base *pfirestore.BaseRepository[settingsDocument]
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)

// NewSettingsRepository binds the repository to provider.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	return &SettingsRepository{base: pfirestore.NewBaseRepository[settingsDocument](provider, settingsCollection, nil, nil)}, nil
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	doc, err := r.base.Get(ctx, settingsDocID)
	if err != nil {
		return domain.Settings{}, err
	}
	d := doc.Data
	return domain.Settings{
		SiteName:            d.SiteName,
		ContactEmail:        d.ContactEmail,
		HeroTitle:           d.HeroTitle,
		HeroSubtitle:        d.HeroSubtitle,
		FeaturedTemplateIDs: append([]string(nil), d.FeaturedTemplateIDs...),
		UpdatedAt:           d.UpdatedAt,
		UpdatedBy:           d.UpdatedBy,
	}, nil
}

func (r *SettingsRepository) Save(ctx context.Context, s domain.Settings) error {
	return r.base.Set(ctx, settingsDocID, settingsDocument{
		SiteName:            s.SiteName,
		ContactEmail:        s.ContactEmail,
		HeroTitle:           s.HeroTitle,
		HeroSubtitle:        s.HeroSubtitle,
		FeaturedTemplateIDs: append([]string{}, s.FeaturedTemplateIDs...),
		UpdatedAt:           s.UpdatedAt.UTC(),
		UpdatedBy:           s.UpdatedBy,
	})
}

type templateStatDocument struct {
	ID        string  `firestore:"id"`
	Title     string  `firestore:"title"`
	ViewCount int64   `firestore:"viewCount"`
	Rating    float64 `firestore:"rating"`
}

type statsDocument struct {
	TemplateCount  int                    `firestore:"templateCount"`
	PublishedCount int                    `firestore:"publishedCount"`
	DraftCount     int                    `firestore:"draftCount"`
	CategoryCount  int                    `firestore:"categoryCount"`
	MessageCount   int                    `firestore:"messageCount"`
	UnreadCount    int                    `firestore:"unreadCount"`
	TotalViews     int64                  `firestore:"totalViews"`
	AverageRating  float64                `firestore:"averageRating"`
	TopTemplates   []templateStatDocument `firestore:"topTemplates"`
	GeneratedAt    time.Time              `firestore:"generatedAt"`
}

// StatsRepository appends dashboard snapshots keyed by their generation time.
type StatsRepository struct {
	base *pfirestore.BaseRepository[statsDocument]
}

var _ repositories.StatsRepository = (*StatsRepository)(nil)

// NewStatsRepository binds the repository to provider.
func NewStatsRepository(provider *pfirestore.Provider) (*StatsRepository, error) {
	if provider == nil {
		return nil, errors.New("stats repository requires firestore provider")
	}
	return &StatsRepository{base: pfirestore.NewBaseRepository[statsDocument](provider, statsCollection, nil, nil)}, nil
}

func (r *StatsRepository) SaveSnapshot(ctx context.Context, stats domain.DashboardStats) error {
	at := stats.GeneratedAt.UTC()
	doc := statsDocument{
		TemplateCount:  stats.TemplateCount,
		PublishedCount: stats.PublishedCount,
		DraftCount:     stats.DraftCount,
		CategoryCount:  stats.CategoryCount,
		MessageCount:   stats.MessageCount,
		UnreadCount:    stats.UnreadCount,
		TotalViews:     stats.TotalViews,
		AverageRating:  stats.AverageRating,
		TopTemplates:   make([]templateStatDocument, 0, len(stats.TopTemplates)),
		GeneratedAt:    at,
	}
	for _, t := range stats.TopTemplates {
		doc.TopTemplates = append(doc.TopTemplates, templateStatDocument(t))
	}
	return r.base.Set(ctx, at.Format("20060102T150405Z"), doc)
}

func (r *StatsRepository) LatestSnapshot(ctx context.Context) (domain.DashboardStats, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("generatedAt", firestore.Desc).Limit(1)
	})
	if err != nil {
		return domain.DashboardStats{}, err
	}
	if len(docs) == 0 {
		return domain.DashboardStats{}, pfirestore.NotFound(statsCollection+".latest", "dashboard snapshot")
	}
	d := docs[0].Data
	stats := domain.DashboardStats{
		TemplateCount:  d.TemplateCount,
		PublishedCount: d.PublishedCount,
		DraftCount:     d.DraftCount,
		CategoryCount:  d.CategoryCount,
		MessageCount:   d.MessageCount,
		UnreadCount:    d.UnreadCount,
		TotalViews:     d.TotalViews,
		AverageRating:  d.AverageRating,
		TopTemplates:   make([]domain.TemplateStat, 0, len(d.TopTemplates)),
		GeneratedAt:    d.GeneratedAt,
	}
	for _, t := range d.TopTemplates {
		stats.TopTemplates = append(stats.TopTemplates, domain.TemplateStat(t))
	}
	return stats, nil
}
