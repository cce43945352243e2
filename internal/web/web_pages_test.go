package web

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"testing"
	"testing/fstest"
)

func TestDefaultRouteTable(t *testing.T) {
	rt := DefaultRouteTable()

	favicon, ok := rt.Lookup("/favicon")
	if !ok || favicon.File != "favicon.ico" || favicon.Status != 0 {
		t.Errorf("favicon page = %+v, %v", favicon, ok)
	}
	root, _ := rt.Lookup("/")
	blog, _ := rt.Lookup("/blog")
	if root.File != blog.File || root.Status != blog.Status {
		t.Errorf("/ = %+v, /blog = %+v", root, blog)
	}
	for _, path := range []string{"/about", "/experience", "/projects", "/interests"} {
		p, ok := rt.Lookup(path)
		if !ok || p.Status != http.StatusOK {
			t.Errorf("%s = %+v, %v", path, p, ok)
		}
	}
	if _, ok := rt.Lookup("/contact"); ok {
		t.Error("unexpected /contact page")
	}
	if rt.NotFound != "404.html" {
		t.Errorf("NotFound = %q", rt.NotFound)
	}
}

func TestRouteTableIsImmutable(t *testing.T) {
	pages := []Page{{Path: "/a", File: "a.html"}}
	rt := NewRouteTable("404.html", pages...)
	pages[0].File = "changed.html"

	got := rt.Pages()
	got[0].File = "changed-again.html"

	if p, _ := rt.Lookup("/a"); p.File != "a.html" {
		t.Fatalf("route table changed through a shared slice: %+v", p)
	}
}

func TestCustomRouteTable(t *testing.T) {
	fsys := fstest.MapFS{
		"teapot.html": {Data: []byte("short and stout")},
		"gone.html":   {Data: []byte("gone")},
	}
	rt := NewRouteTable("gone.html", Page{Path: "/tea", File: "teapot.html", Status: http.StatusTeapot})
	s, err := NewServer(testConfig(t.TempDir()), WithStaticFS(fsys), WithRouteTable(rt))
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(s, http.MethodGet, "/tea")
	if w.Code != http.StatusTeapot || w.Body.String() != "short and stout" {
		t.Fatalf("GET /tea = %d %q", w.Code, w.Body.String())
	}
	w = doRequest(s, http.MethodGet, "/blog")
	if w.Code != http.StatusNotFound || w.Body.String() != "gone" {
		t.Fatalf("GET /blog = %d %q, want the custom 404 page", w.Code, w.Body.String())
	}
}

func TestStaticName(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/style.css", "style.css", true},
		{"/docs/notes.txt", "docs/notes.txt", true},
		{"/docs/./notes.txt", "docs/notes.txt", true},
		{"/../etc/passwd", "etc/passwd", true},
		{"/a/../../b", "b", true},
		{"/", "", false},
		{"", "", false},
		{"/..", "", false},
	}
	for _, tc := range testCases {
		got, ok := staticName(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("staticName(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFileErrorStatus(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{fs.ErrNotExist, http.StatusNotFound},
		{fmt.Errorf("open: %w", fs.ErrNotExist), http.StatusNotFound},
		{fs.ErrInvalid, http.StatusNotFound},
		{fs.ErrPermission, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		if got := fileErrorStatus(tc.err); got != tc.want {
			t.Errorf("fileErrorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("a.css", nil); got != "text/css; charset=utf-8" {
		t.Errorf("contentType(a.css) = %q", got)
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if got := contentType("image.unknownext", png); got != "image/png" {
		t.Errorf("contentType(png bytes) = %q, want image/png", got)
	}
}
