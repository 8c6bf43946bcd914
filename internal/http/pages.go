package http

import (
	"fmt"
	"net/http"

	"planner/internal/session"
)

// PageDataFunc builds the view of a page for the current session plan.
type PageDataFunc func(r *http.Request, plan *session.Plan) (any, error)

// Page is a top-level screen of the planner.
type Page struct {
	ID       string
	Title    string
	Path     string
	Template string // file name under web/templates
	Data     PageDataFunc
}

// PageRegistry holds the pages in the order they were registered, which is
// also the navigation order.
type PageRegistry struct {
	pages  []Page
	byID   map[string]int
	byPath map[string]int
}

func NewPageRegistry() *PageRegistry {
	return &PageRegistry{
		byID:   make(map[string]int),
		byPath: make(map[string]int),
	}
}

// Register adds a page. It panics on an incomplete page or on a duplicate
// id or path, like http.ServeMux does for duplicate patterns.
func (pr *PageRegistry) Register(p Page) *PageRegistry {
	if p.ID == "" || p.Path == "" || p.Template == "" {
		panic(fmt.Sprintf("http: page %q needs an id, a path and a template", p.ID))
	}
	if _, ok := pr.byID[p.ID]; ok {
		panic(fmt.Sprintf("http: duplicate page id %q", p.ID))
	}
	if _, ok := pr.byPath[p.Path]; ok {
		panic(fmt.Sprintf("http: duplicate page path %q", p.Path))
	}
	pr.byID[p.ID] = len(pr.pages)
	pr.byPath[p.Path] = len(pr.pages)
	pr.pages = append(pr.pages, p)
	return pr
}

func (pr *PageRegistry) Lookup(id string) (Page, bool) {
	i, ok := pr.byID[id]
	if !ok {
		return Page{}, false
	}
	return pr.pages[i], true
}

func (pr *PageRegistry) ByPath(path string) (Page, bool) {
	i, ok := pr.byPath[path]
	if !ok {
		return Page{}, false
	}
	return pr.pages[i], true
}

// Pages returns a copy of the registered pages in registration order.
func (pr *PageRegistry) Pages() []Page {
	out := make([]Page, len(pr.pages))
	copy(out, pr.pages)
	return out
}

type navLink struct {
	Title  string
	Path   string
	Active bool
}

func (pr *PageRegistry) nav(activeID string) []navLink {
	links := make([]navLink, 0, len(pr.pages))
	for _, p := range pr.pages {
		links = append(links, navLink{Title: p.Title, Path: p.Path, Active: p.ID == activeID})
	}
	return links
}
