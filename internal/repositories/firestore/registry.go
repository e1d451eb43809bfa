package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/templatemart/api/internal/platform/firestore"
	"github.com/templatemart/api/internal/repositories"
)

// Registry groups the Firestore repositories around one provider.
type Registry struct {
	provider   *pfirestore.Provider
	templates  *TemplateRepository
	categories *CategoryRepository
	messages   *MessageRepository
	settings   *SettingsRepository
	stats      *StatsRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository. The provider connects lazily on first use.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	reg := &Registry{provider: provider}
	var err error
	if reg.templates, err = NewTemplateRepository(provider); err != nil {
		return nil, err
	}
	if reg.categories, err = NewCategoryRepository(provider); err != nil {
		return nil, err
	}
	if reg.messages, err = NewMessageRepository(provider); err != nil {
		return nil, err
	}
	if reg.settings, err = NewSettingsRepository(provider); err != nil {
		return nil, err
	}
	if reg.stats, err = NewStatsRepository(provider); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Templates() repositories.TemplateRepository  { return r.templates }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Messages() repositories.MessageRepository    { return r.messages }
func (r *Registry) Settings() repositories.SettingsRepository   { return r.settings }
func (r *Registry) Stats() repositories.StatsRepository         { return r.stats }

// Close releases the shared client.
func (r *Registry) Close(context.Context) error {
	return r.provider.Close()
}
