package web

import (
	"io/fs"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Page binds a request path to a fixed file under the static root.
// Status 0 leaves the framework default (200) in place.
type Page struct {
	Path   string
	File   string
	Status int
}

// RouteTable is the immutable set of named pages plus the fallback page.
type RouteTable struct {
	pages    []Page
	NotFound string
}

// NewRouteTable copies pages into a new table.
func NewRouteTable(notFound string, pages ...Page) RouteTable {
	return RouteTable{pages: slices.Clone(pages), NotFound: notFound}
}

// DefaultRouteTable returns the site's pages.
func DefaultRouteTable() RouteTable {
	return NewRouteTable("404.html",
		Page{Path: "/favicon", File: "favicon.ico"},
		Page{Path: "/blog", File: "blog.html", Status: http.StatusOK},
		Page{Path: "/about", File: "about.html", Status: http.StatusOK},
		Page{Path: "/experience", File: "experience.html", Status: http.StatusOK},
		Page{Path: "/projects", File: "projects.html", Status: http.StatusOK},
		Page{Path: "/interests", File: "interests.html", Status: http.StatusOK},
		Page{Path: "/", File: "blog.html", Status: http.StatusOK},
	)
}

// Pages returns a copy of the named pages in registration order.
func (rt RouteTable) Pages() []Page {
	return slices.Clone(rt.pages)
}

// Lookup returns the page registered for path.
func (rt RouteTable) Lookup(path string) (Page, bool) {
	for _, p := range rt.pages {
		if p.Path == path {
			return p, true
		}
	}
	return Page{}, false
}

// ServePage returns a handler that always answers with page.File.
func ServePage(fsys fs.FS, page Page) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := serveFile(c, fsys, page.File, page.Status); err != nil {
			abortWithFileError(c, err)
		}
	}
}
