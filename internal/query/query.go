// Package query filters and orders in-memory template and category collections.
//
// Every function in this package is pure: inputs are never mutated and the
// returned slices are always freshly allocated. Malformed user input degrades to
// a literal comparison and never produces an error.
package query

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/templatemart/api/internal/domain"
)

// AllCategories disables category filtering. The empty string behaves the same way.
const AllCategories = "all"

// SortKey selects the ordering of query results.
type SortKey string

const (
	// SortNone keeps the input order.
	SortNone SortKey = ""
	// SortNewest orders by creation time, most recent first.
	SortNewest SortKey = "newest"
	// SortOldest orders by creation time, oldest first.
	SortOldest SortKey = "oldest"
	// SortMostPopular orders by view count (templates) or template count (categories), descending.
	SortMostPopular SortKey = "mostPopular"
	// SortHighestRated orders templates by rating, descending.
	SortHighestRated SortKey = "highestRated"
)

var sortAliases = map[string]SortKey{
	"":              SortNone,
	"newest":        SortNewest,
	"oldest":        SortOldest,
	"mostpopular":   SortMostPopular,
	"most_popular":  SortMostPopular,
	"most-popular":  SortMostPopular,
	"popular":       SortMostPopular,
	"highestrated":  SortHighestRated,
	"highest_rated": SortHighestRated,
	"highest-rated": SortHighestRated,
	"rating":        SortHighestRated,
}

// ParseSort maps user supplied sort names onto a SortKey.
func ParseSort(raw string) (SortKey, bool) {
	key, ok := sortAliases[strings.ToLower(strings.TrimSpace(raw))]
	return key, ok
}

// TemplateCriteria bundles the filter and sort parameters for one template query.
type TemplateCriteria struct {
	// Text is matched case-insensitively as a literal substring of the title or description.
	Text string
	// Category matches a category ID or name. AllCategories or empty disables the filter.
	Category string
	// Tags lists tags a template must all carry.
	Tags []string
	// PublishedOnly restricts results to published templates.
	PublishedOnly bool
	Sort          SortKey
	// Categories, when non-nil, is the known category set used to detect dangling references.
	Categories []domain.Category
}

// CategoryCriteria bundles the filter and sort parameters for one category query.
type CategoryCriteria struct {
	Text string
	Sort SortKey
}

// Templates returns the templates matching every active criterion, ordered by c.Sort.
func Templates(records []domain.Template, c TemplateCriteria) []domain.Template {
	known := categoryIndex(c.Categories)
	var filters []func(domain.Template) bool

	if c.PublishedOnly {
		filters = append(filters, func(t domain.Template) bool {
			return t.Published()
		})
	}
	if needle, ok := searchNeedle(c.Text); ok {
		filters = append(filters, func(t domain.Template) bool {
			return strings.Contains(fold(t.Title), needle) || strings.Contains(fold(t.Description), needle)
		})
	}
	if category := strings.TrimSpace(c.Category); category != "" && !strings.EqualFold(category, AllCategories) {
		filters = append(filters, func(t domain.Template) bool {
			return matchesCategory(t, category, known)
		})
	}
	if required := normalizeTags(c.Tags); len(required) > 0 {
		filters = append(filters, func(t domain.Template) bool {
			return hasAllTags(t.Tags, required)
		})
	}

	out := make([]domain.Template, 0, len(records))
	for _, record := range records {
		if matchesAll(record, filters) {
			out = append(out, record)
		}
	}
	sortTemplates(out, c.Sort)
	return out
}

// Categories returns the categories matching c.Text, ordered by c.Sort.
func Categories(records []domain.Category, c CategoryCriteria) []domain.Category {
	needle, search := searchNeedle(c.Text)
	out := make([]domain.Category, 0, len(records))
	for _, record := range records {
		if search && !strings.Contains(fold(record.Name), needle) && !strings.Contains(fold(record.Description), needle) {
			continue
		}
		out = append(out, record)
	}

	switch c.Sort {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case SortMostPopular:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TemplateCount > out[j].TemplateCount })
	}
	return out
}

// ResolveCategoryNames returns a copy of templates whose CategoryName is taken from
// categories, falling back to domain.UncategorizedName for empty or dangling references.
func ResolveCategoryNames(templates []domain.Template, categories []domain.Category) []domain.Template {
	names := make(map[string]string, len(categories))
	for _, category := range categories {
		names[category.ID] = category.Name
	}
	out := make([]domain.Template, len(templates))
	for i, t := range templates {
		if name, ok := names[strings.TrimSpace(t.CategoryID)]; ok && strings.TrimSpace(name) != "" {
			t.CategoryName = name
		} else {
			t.CategoryName = domain.UncategorizedName
		}
		out[i] = t
	}
	return out
}

// CategoryLabel returns the display name of a template's category.
func CategoryLabel(t domain.Template) string {
	return categoryLabel(t, nil)
}

// Paginate returns the window [offset, offset+limit) of records as a new slice.
// A non-positive limit returns everything after offset.
func Paginate[T any](records []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []T{}
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]T, end-offset)
	copy(out, records[offset:end])
	return out
}

func sortTemplates(items []domain.Template, key SortKey) {
	switch key {
	case SortNewest:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	case SortOldest:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	case SortMostPopular:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ViewCount > items[j].ViewCount })
	case SortHighestRated:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Rating > items[j].Rating })
	}
}

func matchesAll(t domain.Template, filters []func(domain.Template) bool) bool {
	for _, fn := range filters {
		if !fn(t) {
			return false
		}
	}
	return true
}

func matchesCategory(t domain.Template, category string, known map[string]string) bool {
	id := strings.TrimSpace(t.CategoryID)
	if id != "" && id == category && !dangling(id, known) {
		return true
	}
	return strings.EqualFold(categoryLabel(t, known), category)
}

func categoryLabel(t domain.Template, known map[string]string) string {
	id := strings.TrimSpace(t.CategoryID)
	if id == "" || dangling(id, known) {
		return domain.UncategorizedName
	}
	if known != nil {
		if name := strings.TrimSpace(known[id]); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(t.CategoryName); name != "" {
		return name
	}
	return domain.UncategorizedName
}

func dangling(id string, known map[string]string) bool {
	if known == nil {
		return false
	}
	_, ok := known[id]
	return !ok
}

func categoryIndex(categories []domain.Category) map[string]string {
	if categories == nil {
		return nil
	}
	index := make(map[string]string, len(categories))
	for _, category := range categories {
		index[strings.TrimSpace(category.ID)] = category.Name
	}
	return index
}

func hasAllTags(tags []string, required map[string]struct{}) bool {
	have := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		have[fold(strings.TrimSpace(tag))] = struct{}{}
	}
	for tag := range required {
		if _, ok := have[tag]; !ok {
			return false
		}
	}
	return true
}

func normalizeTags(tags []string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			set[fold(trimmed)] = struct{}{}
		}
	}
	return set
}

// searchNeedle folds text for substring matching. Surrounding whitespace is part of the
// needle; only an all-whitespace query disables the filter.
func searchNeedle(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return fold(text), true
}

// fold allocates a Caser per call since cases.Caser is not safe for concurrent use.
func fold(s string) string {
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}
