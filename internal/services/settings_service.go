package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/templatemart/api/internal/platform/textutil"
	"github.com/templatemart/api/internal/repositories"
)

const (
	maxSiteNameLength    = 80
	maxHeroLength        = 200
	maxFeaturedTemplates = 12
	defaultSiteName      = "TemplateMart"
)

var (
	// ErrSettingsInvalidInput indicates the update failed validation.
	ErrSettingsInvalidInput = errors.New("settings service: invalid input")
)

// SettingsServiceDeps bundles constructor inputs for the settings service.
type SettingsServiceDeps struct {
	Settings  repositories.SettingsRepository
	Templates repositories.TemplateRepository
	// Defaults is returned until settings are saved for the first time.
	Defaults Settings
	Clock    func() time.Time
}

type settingsService struct {
	repo      repositories.SettingsRepository
	templates repositories.TemplateRepository
	defaults  Settings
	clock     func() time.Time
}

var _ SettingsService = (*settingsService)(nil)

// NewSettingsService constructs the settings service.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	defaults := deps.Defaults
	if strings.TrimSpace(defaults.SiteName) == "" {
		defaults.SiteName = defaultSiteName
	}
	return &settingsService{
		repo:      deps.Settings,
		templates: deps.Templates,
		defaults:  defaults,
		clock:     utcClock(deps.Clock),
	}, nil
}

func (s *settingsService) Get(ctx context.Context) (Settings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		if repositories.IsNotFound(err) {
			out := s.defaults
			out.FeaturedTemplateIDs = append([]string(nil), s.defaults.FeaturedTemplateIDs...)
			return out, nil
		}
		return Settings{}, fmt.Errorf("settings service: get: %w", err)
	}
	return settings, nil
}

func (s *settingsService) Update(ctx context.Context, cmd SettingsCommand) (Settings, error) {
	settings := Settings{
		SiteName:            strings.TrimSpace(cmd.SiteName),
		ContactEmail:        strings.TrimSpace(cmd.ContactEmail),
		HeroTitle:           strings.TrimSpace(cmd.HeroTitle),
		HeroSubtitle:        strings.TrimSpace(cmd.HeroSubtitle),
		FeaturedTemplateIDs: textutil.NormalizeList(cmd.FeaturedTemplateIDs),
		UpdatedBy:           strings.TrimSpace(cmd.ActorID),
	}

	switch {
	case settings.SiteName == "":
		return Settings{}, fmt.Errorf("%w: siteName is required", ErrSettingsInvalidInput)
	case utf8.RuneCountInString(settings.SiteName) > maxSiteNameLength:
		return Settings{}, fmt.Errorf("%w: siteName exceeds %d characters", ErrSettingsInvalidInput, maxSiteNameLength)
	case utf8.RuneCountInString(settings.HeroTitle) > maxHeroLength || utf8.RuneCountInString(settings.HeroSubtitle) > maxHeroLength:
		return Settings{}, fmt.Errorf("%w: hero text exceeds %d characters", ErrSettingsInvalidInput, maxHeroLength)
	case len(settings.FeaturedTemplateIDs) > maxFeaturedTemplates:
		return Settings{}, fmt.Errorf("%w: at most %d featured templates", ErrSettingsInvalidInput, maxFeaturedTemplates)
	}
	if settings.ContactEmail != "" {
		if addr, err := mail.ParseAddress(settings.ContactEmail); err != nil || addr.Address != settings.ContactEmail {
			return Settings{}, fmt.Errorf("%w: contactEmail is invalid", ErrSettingsInvalidInput)
		}
	}
	if s.templates != nil {
		for _, id := range settings.FeaturedTemplateIDs {
			template, err := s.templates.Get(ctx, id)
			if err != nil {
				if repositories.IsNotFound(err) {
					return Settings{}, fmt.Errorf("%w: featured template %s does not exist", ErrSettingsInvalidInput, id)
				}
				return Settings{}, fmt.Errorf("settings service: get template: %w", err)
			}
			if !template.Published() {
				return Settings{}, fmt.Errorf("%w: featured template %s is not published", ErrSettingsInvalidInput, id)
			}
		}
	}

	settings.UpdatedAt = s.clock()
	if err := s.repo.Save(ctx, settings); err != nil {
		return Settings{}, fmt.Errorf("settings service: save: %w", err)
	}
	return settings, nil
}
