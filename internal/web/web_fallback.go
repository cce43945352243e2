package web

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FallbackHandler runs when no named page matched. GET requests are tried
// against the static root and end on the notFound page with status 404;
// every other method gets 405 without a body.
func FallbackHandler(fsys fs.FS, notFound string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Allow", http.MethodGet)
			c.AbortWithStatus(http.StatusMethodNotAllowed)
			return
		}

		err := serveStatic(c, fsys)
		if err == nil {
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			// escaping symlinks, permission errors: still a 404 to the client
			_ = c.Error(err)
		}

		if err := serveFile(c, fsys, notFound, http.StatusNotFound); err != nil {
			_ = c.Error(err)
			c.String(http.StatusNotFound, "404 page not found")
		}
	}
}
