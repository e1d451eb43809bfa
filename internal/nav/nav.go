package nav

import (
	"path"
	"strings"

	"github.com/templatemart/api/internal/domain"
)

// Item is a navigation entry definition.
type Item struct {
	Path     string // e.g. "/templates"
	LabelKey string // i18n key, e.g. "nav.templates"
}

// Main is the public navigation.
var Main = []Item{
	{Path: "/", LabelKey: "nav.home"},
	{Path: "/templates", LabelKey: "nav.templates"},
	{Path: "/categories", LabelKey: "nav.categories"},
	{Path: "/contact", LabelKey: "nav.contact"},
}

// Admin is the entry revealed once the session is elevated.
var Admin = Item{Path: "/admin", LabelKey: "nav.admin"}

// Build renders the navigation for currentPath. The admin entry is appended only when elevated.
func Build(currentPath string, elevated bool) []domain.NavItem {
	currentPath = normalize(currentPath)
	items := make([]domain.NavItem, 0, len(Main)+1)
	for _, it := range Main {
		items = append(items, domain.NavItem{
			Href:     it.Path,
			LabelKey: it.LabelKey,
			Active:   isActive(it.Path, currentPath),
		})
	}
	if elevated {
		items = append(items, domain.NavItem{
			Href:     Admin.Path,
			LabelKey: Admin.LabelKey,
			Active:   isActive(Admin.Path, currentPath),
			Hidden:   true,
		})
	}
	return items
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func isActive(itemPath, currentPath string) bool {
	if itemPath == "/" {
		return currentPath == "/"
	}
	// exact or prefix boundary: "/templates" or "/templates/..."
	return currentPath == itemPath || strings.HasPrefix(currentPath, itemPath+"/")
}
