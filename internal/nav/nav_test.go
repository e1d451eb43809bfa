package nav

import "testing"

func TestBuildMarksActive(t *testing.T) {
	items := Build("/templates/abc", false)
	if len(items) != len(Main) {
		t.Fatalf("expected %d items, got %d", len(Main), len(items))
	}
	for _, item := range items {
		want := item.Href == "/templates"
		if item.Active != want {
			t.Fatalf("item %s: expected active=%v", item.Href, want)
		}
	}
}

func TestBuildHomeOnlyActiveAtRoot(t *testing.T) {
	items := Build("", false)
	if !items[0].Active {
		t.Fatalf("expected home active")
	}
	items = Build("/templatesfoo", false)
	for _, item := range items {
		if item.Active {
			t.Fatalf("unexpected active item %s", item.Href)
		}
	}
}

func TestBuildRevealsAdminWhenElevated(t *testing.T) {
	items := Build("/admin/templates", true)
	last := items[len(items)-1]
	if last.Href != "/admin" || !last.Hidden || !last.Active {
		t.Fatalf("expected active admin entry, got %+v", last)
	}
	for _, item := range Build("/", false) {
		if item.Href == "/admin" {
			t.Fatalf("admin entry must stay hidden")
		}
	}
}
