package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/templatemart/api/internal/platform/config"
	"github.com/templatemart/api/internal/platform/events"
	"github.com/templatemart/api/internal/platform/markup"
	"github.com/templatemart/api/internal/repositories"
	"github.com/templatemart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog      services.CatalogService
	AdminCatalog services.AdminCatalogService
	Messages     services.MessageService
	Dashboard    services.DashboardService
	Settings     services.SettingsService
	Access       services.AccessService
	Assets       services.AssetService
}

// Infrastructure carries the clients built outside the container.
type Infrastructure struct {
	Events events.Publisher
	// Signer may be nil; downloads then fall back to public links.
	Signer services.URLSigner
	Clock  func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests supply the in-memory registry.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svc, err := buildServices(reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases the repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services
	renderer := markup.NewRenderer()
	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Templates:  reg.Templates(),
		Categories: reg.Categories(),
		Events:     infra.Events,
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	adminSvc, err := services.NewAdminCatalogService(services.AdminCatalogServiceDeps{
		Templates:  reg.Templates(),
		Categories: reg.Categories(),
		Markdown:   renderer,
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build admin catalog service: %w", err)
	}
	svc.AdminCatalog = adminSvc

	messageSvc, err := services.NewMessageService(services.MessageServiceDeps{
		Messages:  reg.Messages(),
		Sanitizer: renderer,
		Events:    infra.Events,
		Clock:     clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build message service: %w", err)
	}
	svc.Messages = messageSvc

	dashboardSvc, err := services.NewDashboardService(services.DashboardServiceDeps{
		Templates:  reg.Templates(),
		Categories: reg.Categories(),
		Messages:   reg.Messages(),
		Stats:      reg.Stats(),
		Events:     infra.Events,
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build dashboard service: %w", err)
	}
	svc.Dashboard = dashboardSvc

	settingsSvc, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings:  reg.Settings(),
		Templates: reg.Templates(),
		Clock:     clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build settings service: %w", err)
	}
	svc.Settings = settingsSvc

	accessSvc, err := services.NewAccessService(services.AccessServiceDeps{
		Settings: services.AccessSettings{
			Sequence:       cfg.Access.Sequence,
			Chord:          cfg.Access.Chord,
			ClickThreshold: cfg.Access.ClickThreshold,
			ClickTarget:    cfg.Access.ClickTarget,
		},
		Events: infra.Events,
		Clock:  clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build access service: %w", err)
	}
	svc.Access = accessSvc

	assetSvc, err := services.NewAssetService(services.AssetServiceDeps{
		Templates: reg.Templates(),
		Signer:    infra.Signer,
		Bucket:    cfg.Storage.AssetsBucket,
		TTL:       cfg.Storage.SignedURLTTL,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build asset service: %w", err)
	}
	svc.Assets = assetSvc

	return svc, nil
}
