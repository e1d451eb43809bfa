package query

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/templatemart/api/internal/domain"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleTemplates() []domain.Template {
	return []domain.Template{
		{ID: "t1", Title: "Portfolio Pro", Description: "Clean portfolio", CategoryID: "c1", CategoryName: "Portfolio", Tags: []string{"React"}, Status: domain.TemplateStatusPublished, ViewCount: 10, Rating: 4.1, CreatedAt: base},
		{ID: "t2", Title: "Shop Starter", Description: "E-commerce (beta) kit", CategoryID: "c2", CategoryName: "Shop", Tags: []string{"React", "Dark Mode", "Vite"}, Status: domain.TemplateStatusPublished, ViewCount: 30, Rating: 4.8, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "t3", Title: "Blog Draft", Description: "Minimal blog", CategoryID: "c1", CategoryName: "Portfolio", Tags: []string{"Vue"}, Status: domain.TemplateStatusDraft, ViewCount: 10, Rating: 3.9, CreatedAt: base.Add(time.Hour)},
		{ID: "t4", Title: "Landing", Description: "Startup landing page", CategoryID: "gone", CategoryName: "Deleted", Tags: []string{"dark mode", "react"}, Status: domain.TemplateStatusPublished, ViewCount: 10, Rating: 4.8, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "t5", Title: "Docs", Description: "Documentation site", Status: domain.TemplateStatusPublished, ViewCount: 50, Rating: 4.0, CreatedAt: base.Add(-time.Hour)},
	}
}

func sampleCategories() []domain.Category {
	return []domain.Category{
		{ID: "c1", Name: "Portfolio", Description: "Personal sites", TemplateCount: 1, CreatedAt: base},
		{ID: "c2", Name: "Shop", Description: "Online stores", TemplateCount: 3, CreatedAt: base.Add(time.Hour)},
	}
}

func ids(items []domain.Template) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestTemplates_EmptyCriteriaIsIdentity(t *testing.T) {
	input := sampleTemplates()
	got := Templates(input, TemplateCriteria{})
	if diff := cmp.Diff(input, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
	if len(got) > 0 && &got[0] == &input[0] {
		t.Fatalf("expected a new slice")
	}
}

func TestTemplates_DoesNotMutateInput(t *testing.T) {
	input := sampleTemplates()
	snapshot := sampleTemplates()
	_ = Templates(input, TemplateCriteria{Sort: SortMostPopular, Tags: []string{"react"}, Text: "o"})
	if diff := cmp.Diff(snapshot, input); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestTemplates_PublishedOnly(t *testing.T) {
	input := sampleTemplates()
	got := Templates(input, TemplateCriteria{PublishedOnly: true})
	for _, item := range got {
		if item.Status != domain.TemplateStatusPublished {
			t.Fatalf("expected only published templates, got %s with status %s", item.ID, item.Status)
		}
	}
	published := 0
	for _, item := range input {
		if item.Published() {
			published++
		}
	}
	if len(got) != published {
		t.Fatalf("expected %d published templates, got %d", published, len(got))
	}
}

func TestTemplates_Idempotent(t *testing.T) {
	criteria := TemplateCriteria{Text: "a", PublishedOnly: true, Sort: SortHighestRated, Tags: []string{"React"}}
	once := Templates(sampleTemplates(), criteria)
	twice := Templates(once, criteria)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("query not idempotent (-once +twice):\n%s", diff)
	}
}

func TestTemplates_MostPopularIsStable(t *testing.T) {
	got := Templates(sampleTemplates(), TemplateCriteria{Sort: SortMostPopular})
	want := []string{"t5", "t2", "t1", "t3", "t4"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ViewCount > got[i-1].ViewCount {
			t.Fatalf("view counts increase at %d", i)
		}
	}
}

func TestTemplates_SortTiesKeepInputOrder(t *testing.T) {
	tied := []domain.Template{
		{ID: "a", ViewCount: 5, Rating: 4.5, CreatedAt: base},
		{ID: "b", ViewCount: 9, Rating: 3.0, CreatedAt: base.Add(time.Hour)},
		{ID: "c", ViewCount: 5, Rating: 4.5, CreatedAt: base},
		{ID: "d", ViewCount: 1, Rating: 4.5, CreatedAt: base.Add(-time.Hour)},
		{ID: "e", ViewCount: 5, Rating: 3.0, CreatedAt: base.Add(time.Hour)},
	}
	reversed := make([]domain.Template, len(tied))
	for i, item := range tied {
		reversed[len(tied)-1-i] = item
	}

	tests := []struct {
		name         string
		sort         SortKey
		want         []string
		wantReversed []string
	}{
		{name: "newest", sort: SortNewest, want: []string{"b", "e", "a", "c", "d"}, wantReversed: []string{"e", "b", "c", "a", "d"}},
		{name: "oldest", sort: SortOldest, want: []string{"d", "a", "c", "b", "e"}, wantReversed: []string{"d", "c", "a", "e", "b"}},
		{name: "most popular", sort: SortMostPopular, want: []string{"b", "a", "c", "e", "d"}, wantReversed: []string{"b", "e", "c", "a", "d"}},
		{name: "highest rated", sort: SortHighestRated, want: []string{"a", "c", "d", "b", "e"}, wantReversed: []string{"d", "c", "a", "e", "b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Templates(tied, TemplateCriteria{Sort: tc.sort})
			if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
				t.Fatalf("unexpected order (-want +got):\n%s", diff)
			}
			got = Templates(reversed, TemplateCriteria{Sort: tc.sort})
			if diff := cmp.Diff(tc.wantReversed, ids(got)); diff != "" {
				t.Fatalf("ties must follow input order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTemplates_SortKeys(t *testing.T) {
	tests := []struct {
		name string
		sort SortKey
		want []string
	}{
		{name: "newest", sort: SortNewest, want: []string{"t4", "t2", "t3", "t1", "t5"}},
		{name: "oldest", sort: SortOldest, want: []string{"t5", "t1", "t3", "t2", "t4"}},
		{name: "highest rated keeps tie order", sort: SortHighestRated, want: []string{"t2", "t4", "t1", "t5", "t3"}},
		{name: "unknown keeps input order", sort: SortKey("random"), want: []string{"t1", "t2", "t3", "t4", "t5"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Templates(sampleTemplates(), TemplateCriteria{Sort: tc.sort})
			if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
				t.Fatalf("unexpected order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTemplates_TextIsLiteralAndCaseInsensitive(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{text: "PORTFOLIO", want: []string{"t1"}},
		{text: "(beta)", want: []string{"t2"}},
		{text: "(", want: []string{"t2"}},
		{text: "[a-", want: []string{}},
		{text: `\`, want: []string{}},
		{text: ".*", want: []string{}},
		{text: "folio", want: []string{"t1"}},
		{text: " folio", want: []string{}},
		{text: " pro", want: []string{"t1"}},
		{text: "landing ", want: []string{"t4"}},
		{text: "  landing  ", want: []string{}},
		{text: "   ", want: []string{"t1", "t2", "t3", "t4", "t5"}},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got := Templates(sampleTemplates(), TemplateCriteria{Text: tc.text})
			if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
				t.Fatalf("unexpected matches (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTemplates_TagsUseAndSemantics(t *testing.T) {
	records := []domain.Template{
		{ID: "only-react", Tags: []string{"React"}},
		{ID: "superset", Tags: []string{"React", "Dark Mode", "Vite"}},
	}
	got := Templates(records, TemplateCriteria{Tags: []string{"React", "Dark Mode"}})
	if diff := cmp.Diff([]string{"superset"}, ids(got)); diff != "" {
		t.Fatalf("unexpected matches (-want +got):\n%s", diff)
	}

	got = Templates(sampleTemplates(), TemplateCriteria{Tags: []string{"react", " DARK MODE "}})
	if diff := cmp.Diff([]string{"t2", "t4"}, ids(got)); diff != "" {
		t.Fatalf("expected case-insensitive tag match (-want +got):\n%s", diff)
	}
}

func TestTemplates_CategoryFilter(t *testing.T) {
	tests := []struct {
		name       string
		category   string
		categories []domain.Category
		want       []string
	}{
		{name: "sentinel", category: AllCategories, want: []string{"t1", "t2", "t3", "t4", "t5"}},
		{name: "empty", category: "", want: []string{"t1", "t2", "t3", "t4", "t5"}},
		{name: "by id", category: "c1", want: []string{"t1", "t3"}},
		{name: "by name", category: "shop", want: []string{"t2"}},
		{name: "uncategorized without catalog", category: "Uncategorized", want: []string{"t5"}},
		{name: "dangling reference", category: "uncategorized", categories: sampleCategories(), want: []string{"t4", "t5"}},
		{name: "dangling id no longer matches", category: "gone", categories: sampleCategories(), want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Templates(sampleTemplates(), TemplateCriteria{Category: tc.category, Categories: tc.categories})
			if diff := cmp.Diff(tc.want, ids(got)); diff != "" {
				t.Fatalf("unexpected matches (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTemplates_EmptyResultIsNotNil(t *testing.T) {
	got := Templates(nil, TemplateCriteria{Text: "anything"})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCategories(t *testing.T) {
	got := Categories(sampleCategories(), CategoryCriteria{Text: "STORE"})
	if len(got) != 1 || got[0].ID != "c2" {
		t.Fatalf("expected shop category, got %+v", got)
	}
	got = Categories(sampleCategories(), CategoryCriteria{Sort: SortMostPopular})
	if got[0].ID != "c2" || got[1].ID != "c1" {
		t.Fatalf("unexpected order %+v", got)
	}
	got = Categories(sampleCategories(), CategoryCriteria{Text: ")"})
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
	got = Categories(sampleCategories(), CategoryCriteria{Text: " tore"})
	if len(got) != 0 {
		t.Fatalf("leading space must be matched literally, got %+v", got)
	}
	got = Categories(sampleCategories(), CategoryCriteria{Text: " \t"})
	if len(got) != 2 {
		t.Fatalf("blank text must not filter, got %+v", got)
	}
}

func TestResolveCategoryNames(t *testing.T) {
	input := sampleTemplates()
	got := ResolveCategoryNames(input, sampleCategories())
	want := []string{"Portfolio", "Shop", "Portfolio", domain.UncategorizedName, domain.UncategorizedName}
	for i, item := range got {
		if item.CategoryName != want[i] {
			t.Fatalf("template %s: expected %q got %q", item.ID, want[i], item.CategoryName)
		}
	}
	if input[3].CategoryName != "Deleted" {
		t.Fatalf("input mutated")
	}
}

func TestParseSort(t *testing.T) {
	cases := map[string]SortKey{
		"newest":        SortNewest,
		"mostPopular":   SortMostPopular,
		"most_popular":  SortMostPopular,
		"highest-rated": SortHighestRated,
		"":              SortNone,
	}
	for raw, want := range cases {
		got, ok := ParseSort(raw)
		if !ok || got != want {
			t.Fatalf("ParseSort(%q): expected %q got %q (ok=%v)", raw, want, got, ok)
		}
	}
	if _, ok := ParseSort("cheapest"); ok {
		t.Fatalf("expected unknown sort to be rejected")
	}
}

func TestPaginate(t *testing.T) {
	input := []int{1, 2, 3, 4, 5}
	if diff := cmp.Diff([]int{3, 4}, Paginate(input, 2, 2)); diff != "" {
		t.Fatalf("unexpected window (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{4, 5}, Paginate(input, 3, 0)); diff != "" {
		t.Fatalf("unexpected window (-want +got):\n%s", diff)
	}
	if got := Paginate(input, 9, 2); len(got) != 0 {
		t.Fatalf("expected empty window, got %v", got)
	}
	window := Paginate(input, 0, 2)
	window[0] = 99
	if input[0] != 1 {
		t.Fatalf("paginate must copy")
	}
}
