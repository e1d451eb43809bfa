package memory

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/templatemart/api/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the YAML catalog loaded into a fresh store.
type Seed struct {
	Categories []seedCategory `yaml:"categories"`
	Templates  []seedTemplate `yaml:"templates"`
	Settings   *seedSettings  `yaml:"settings"`
}

type seedCategory struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	ImageURL    string    `yaml:"imageUrl"`
	CreatedAt   time.Time `yaml:"createdAt"`
}

type seedTemplate struct {
	ID           string    `yaml:"id"`
	Title        string    `yaml:"title"`
	Description  string    `yaml:"description"`
	ThumbnailURL string    `yaml:"thumbnailUrl"`
	CategoryID   string    `yaml:"categoryId"`
	Tags         []string  `yaml:"tags"`
	DemoURL      string    `yaml:"demoUrl"`
	SourceURL    string    `yaml:"sourceUrl"`
	DownloadURL  string    `yaml:"downloadUrl"`
	Status       string    `yaml:"status"`
	ViewCount    int64     `yaml:"viewCount"`
	Rating       float64   `yaml:"rating"`
	CreatedAt    time.Time `yaml:"createdAt"`
}

type seedSettings struct {
	SiteName            string   `yaml:"siteName"`
	ContactEmail        string   `yaml:"contactEmail"`
	HeroTitle           string   `yaml:"heroTitle"`
	HeroSubtitle        string   `yaml:"heroSubtitle"`
	FeaturedTemplateIDs []string `yaml:"featuredTemplateIds"`
}

// DefaultSeed returns the demo catalog compiled into the binary.
func DefaultSeed() (Seed, error) {
	return ParseSeed(strings.NewReader(string(defaultSeed)))
}

// LoadSeedFile parses the YAML catalog at path.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("memory: open seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes and validates a YAML catalog. Unknown keys are rejected.
func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("memory: decode seed: %w", err)
	}

	ids := make(map[string]struct{})
	for i, c := range seed.Categories {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return Seed{}, fmt.Errorf("memory: seed category %d needs id and name", i)
		}
		if _, dup := ids["c/"+c.ID]; dup {
			return Seed{}, fmt.Errorf("memory: duplicate seed category %s", c.ID)
		}
		ids["c/"+c.ID] = struct{}{}
	}
	for i, t := range seed.Templates {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Title) == "" {
			return Seed{}, fmt.Errorf("memory: seed template %d needs id and title", i)
		}
		if _, dup := ids["t/"+t.ID]; dup {
			return Seed{}, fmt.Errorf("memory: duplicate seed template %s", t.ID)
		}
		ids["t/"+t.ID] = struct{}{}
		if status := domain.TemplateStatus(t.Status); t.Status != "" && !status.Valid() {
			return Seed{}, fmt.Errorf("memory: seed template %s has unknown status %q", t.ID, t.Status)
		}
	}
	return seed, nil
}

func (t seedTemplate) toDomain(now time.Time) domain.Template {
	status := domain.TemplateStatus(t.Status)
	if status == "" {
		status = domain.TemplateStatusDraft
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = now
	}
	return domain.Template{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		ThumbnailURL: t.ThumbnailURL,
		CategoryID:   t.CategoryID,
		Tags:         append([]string(nil), t.Tags...),
		DemoURL:      t.DemoURL,
		SourceURL:    t.SourceURL,
		DownloadURL:  t.DownloadURL,
		Status:       status,
		ViewCount:    t.ViewCount,
		Rating:       t.Rating,
		CreatedAt:    created.UTC(),
		UpdatedAt:    created.UTC(),
	}
}
