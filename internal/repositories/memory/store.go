// Package memory implements the repositories in process memory for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/platform/pagination"
	"github.com/templatemart/api/internal/repositories"
)

// Registry holds every collection behind one lock so cross-collection checks (category
// deletes) stay consistent.
type Registry struct {
	mu         sync.RWMutex
	templates  map[string]domain.Template
	categories map[string]domain.Category
	messages   map[string]domain.Message
	settings   *domain.Settings
	snapshots  []domain.DashboardStats
	now        func() time.Time
}

var _ repositories.Registry = (*Registry)(nil)

// Option customises the Registry.
type Option func(*Registry)

// WithClock injects the clock used for seed defaults.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry builds an empty store, optionally loading seed.
func NewRegistry(seed *Seed, opts ...Option) *Registry {
	r := &Registry{
		templates:  make(map[string]domain.Template),
		categories: make(map[string]domain.Category),
		messages:   make(map[string]domain.Message),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if seed != nil {
		r.load(*seed)
	}
	return r
}

func (r *Registry) load(seed Seed) {
	now := r.now().UTC()
	for _, c := range seed.Categories {
		created := c.CreatedAt
		if created.IsZero() {
			created = now
		}
		r.categories[c.ID] = domain.Category{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ImageURL:    c.ImageURL,
			CreatedAt:   created.UTC(),
		}
	}
	for _, t := range seed.Templates {
		r.templates[t.ID] = t.toDomain(now)
	}
	if s := seed.Settings; s != nil {
		r.settings = &domain.Settings{
			SiteName:            s.SiteName,
			ContactEmail:        s.ContactEmail,
			HeroTitle:           s.HeroTitle,
			HeroSubtitle:        s.HeroSubtitle,
			FeaturedTemplateIDs: append([]string(nil), s.FeaturedTemplateIDs...),
			UpdatedAt:           now,
		}
	}
}

func (r *Registry) Templates() repositories.TemplateRepository  { return templateRepo{r} }
func (r *Registry) Categories() repositories.CategoryRepository { return categoryRepo{r} }
func (r *Registry) Messages() repositories.MessageRepository    { return messageRepo{r} }
func (r *Registry) Settings() repositories.SettingsRepository   { return settingsRepo{r} }
func (r *Registry) Stats() repositories.StatsRepository         { return statsRepo{r} }

// Close is a no-op.
func (r *Registry) Close(context.Context) error { return nil }

type templateRepo struct{ r *Registry }

func (t templateRepo) List(ctx context.Context) ([]domain.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.r.mu.RLock()
	defer t.r.mu.RUnlock()
	items := make([]domain.Template, 0, len(t.r.templates))
	for _, tpl := range t.r.templates {
		items = append(items, cloneTemplate(tpl))
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (t templateRepo) Get(ctx context.Context, id string) (domain.Template, error) {
	if err := ctx.Err(); err != nil {
		return domain.Template{}, err
	}
	t.r.mu.RLock()
	defer t.r.mu.RUnlock()
	tpl, ok := t.r.templates[strings.TrimSpace(id)]
	if !ok {
		return domain.Template{}, repositories.NotFound("templates.get", "template %s", id)
	}
	return cloneTemplate(tpl), nil
}

func (t templateRepo) Insert(ctx context.Context, tpl domain.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if _, exists := t.r.templates[tpl.ID]; exists {
		return repositories.Conflict("templates.insert", "template %s already exists", tpl.ID)
	}
	t.r.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (t templateRepo) Update(ctx context.Context, tpl domain.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	current, ok := t.r.templates[tpl.ID]
	if !ok {
		return repositories.NotFound("templates.update", "template %s", tpl.ID)
	}
	next := cloneTemplate(tpl)
	next.ViewCount = current.ViewCount
	next.CreatedAt = current.CreatedAt
	t.r.templates[tpl.ID] = next
	return nil
}

func (t templateRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if _, ok := t.r.templates[id]; !ok {
		return repositories.NotFound("templates.delete", "template %s", id)
	}
	delete(t.r.templates, id)
	return nil
}

func (t templateRepo) IncrementViews(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	tpl, ok := t.r.templates[id]
	if !ok {
		return 0, repositories.NotFound("templates.incrementViews", "template %s", id)
	}
	tpl.ViewCount++
	t.r.templates[id] = tpl
	return tpl.ViewCount, nil
}

type categoryRepo struct{ r *Registry }

func (c categoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.r.mu.RLock()
	defer c.r.mu.RUnlock()
	items := make([]domain.Category, 0, len(c.r.categories))
	for _, cat := range c.r.categories {
		items = append(items, cat)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (c categoryRepo) Get(ctx context.Context, id string) (domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return domain.Category{}, err
	}
	c.r.mu.RLock()
	defer c.r.mu.RUnlock()
	cat, ok := c.r.categories[strings.TrimSpace(id)]
	if !ok {
		return domain.Category{}, repositories.NotFound("categories.get", "category %s", id)
	}
	return cat, nil
}

func (c categoryRepo) Insert(ctx context.Context, cat domain.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if _, exists := c.r.categories[cat.ID]; exists {
		return repositories.Conflict("categories.insert", "category %s already exists", cat.ID)
	}
	c.r.categories[cat.ID] = cat
	return nil
}

func (c categoryRepo) Update(ctx context.Context, cat domain.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	current, ok := c.r.categories[cat.ID]
	if !ok {
		return repositories.NotFound("categories.update", "category %s", cat.ID)
	}
	cat.CreatedAt = current.CreatedAt
	c.r.categories[cat.ID] = cat
	return nil
}

func (c categoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if _, ok := c.r.categories[id]; !ok {
		return repositories.NotFound("categories.delete", "category %s", id)
	}
	for _, tpl := range c.r.templates {
		if tpl.CategoryID == id {
			return repositories.Conflict("categories.delete", "category %s is still used by templates", id)
		}
	}
	delete(c.r.categories, id)
	return nil
}

type messageRepo struct{ r *Registry }

func (m messageRepo) Insert(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if _, exists := m.r.messages[msg.ID]; exists {
		return repositories.Conflict("messages.insert", "message %s already exists", msg.ID)
	}
	m.r.messages[msg.ID] = msg
	return nil
}

// List mirrors the Firestore ordering: createdAt desc, then ID desc.
func (m messageRepo) List(ctx context.Context, filter repositories.MessageListFilter) (domain.CursorPage[domain.Message], error) {
	if err := ctx.Err(); err != nil {
		return domain.CursorPage[domain.Message]{}, err
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Message]{}, err
	}
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	m.r.mu.RLock()
	all := make([]domain.Message, 0, len(m.r.messages))
	for _, msg := range m.r.messages {
		if filter.UnreadOnly && msg.Read {
			continue
		}
		all = append(all, msg)
	}
	m.r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return messageAfter(all[i], all[j]) })

	start := 0
	if !cursor.CreatedAt.IsZero() && cursor.ID != "" {
		marker := domain.Message{ID: cursor.ID, CreatedAt: cursor.CreatedAt}
		start = sort.Search(len(all), func(i int) bool { return messageAfter(marker, all[i]) })
	}

	page := domain.CursorPage[domain.Message]{Items: make([]domain.Message, 0, limit)}
	end := min(start+limit, len(all))
	page.Items = append(page.Items, all[start:end]...)
	if end < len(all) && len(page.Items) > 0 {
		last := page.Items[len(page.Items)-1]
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (m messageRepo) Get(ctx context.Context, id string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	m.r.mu.RLock()
	defer m.r.mu.RUnlock()
	msg, ok := m.r.messages[strings.TrimSpace(id)]
	if !ok {
		return domain.Message{}, repositories.NotFound("messages.get", "message %s", id)
	}
	return msg, nil
}

func (m messageRepo) MarkRead(ctx context.Context, id string, readAt time.Time) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	msg, ok := m.r.messages[id]
	if !ok {
		return domain.Message{}, repositories.NotFound("messages.markRead", "message %s", id)
	}
	if !msg.Read {
		at := readAt.UTC()
		msg.Read = true
		msg.ReadAt = &at
		m.r.messages[id] = msg
	}
	return msg, nil
}

func (m messageRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if _, ok := m.r.messages[id]; !ok {
		return repositories.NotFound("messages.delete", "message %s", id)
	}
	delete(m.r.messages, id)
	return nil
}

func (m messageRepo) Counts(ctx context.Context) (repositories.MessageCounts, error) {
	if err := ctx.Err(); err != nil {
		return repositories.MessageCounts{}, err
	}
	m.r.mu.RLock()
	defer m.r.mu.RUnlock()
	counts := repositories.MessageCounts{Total: len(m.r.messages)}
	for _, msg := range m.r.messages {
		if !msg.Read {
			counts.Unread++
		}
	}
	return counts, nil
}

type settingsRepo struct{ r *Registry }

func (s settingsRepo) Get(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	if s.r.settings == nil {
		return domain.Settings{}, repositories.NotFound("settings.get", "settings")
	}
	out := *s.r.settings
	out.FeaturedTemplateIDs = append([]string(nil), out.FeaturedTemplateIDs...)
	return out, nil
}

func (s settingsRepo) Save(ctx context.Context, settings domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	settings.FeaturedTemplateIDs = append([]string(nil), settings.FeaturedTemplateIDs...)
	s.r.settings = &settings
	return nil
}

type statsRepo struct{ r *Registry }

func (s statsRepo) SaveSnapshot(ctx context.Context, stats domain.DashboardStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	stats.TopTemplates = append([]domain.TemplateStat(nil), stats.TopTemplates...)
	s.r.snapshots = append(s.r.snapshots, stats)
	return nil
}

func (s statsRepo) LatestSnapshot(ctx context.Context) (domain.DashboardStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.DashboardStats{}, err
	}
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	if len(s.r.snapshots) == 0 {
		return domain.DashboardStats{}, repositories.NotFound("stats.latest", "dashboard snapshot")
	}
	latest := s.r.snapshots[0]
	for _, snap := range s.r.snapshots[1:] {
		if !snap.GeneratedAt.Before(latest.GeneratedAt) {
			latest = snap
		}
	}
	return latest, nil
}

// messageAfter orders a before b when a is newer (createdAt desc, ID desc).
func messageAfter(a, b domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func cloneTemplate(t domain.Template) domain.Template {
	t.Tags = append([]string(nil), t.Tags...)
	return t
}
