package web

import (
	"io/fs"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// staticName maps a request path onto a name inside the static root.
// The path is cleaned as if rooted, so ".." can never climb above the root;
// the root itself has no index and is not served.
func staticName(urlPath string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

// serveStatic answers with the file under fsys named by the request path.
func serveStatic(c *gin.Context, fsys fs.FS) error {
	name, ok := staticName(c.Request.URL.Path)
	if !ok {
		return fs.ErrNotExist
	}
	return serveFile(c, fsys, name, 0)
}
