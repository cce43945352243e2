package web

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// serveFile writes name from fsys with the given status (0 means 200).
// Default-status responses go through http.ServeContent so conditional and
// range requests work; any other status is written in one piece.
func serveFile(c *gin.Context, fsys fs.FS, name string, status int) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", name, fs.ErrNotExist)
	}

	if rs, ok := f.(io.ReadSeeker); ok && (status == 0 || status == http.StatusOK) {
		ctype, err := detectContentType(name, rs)
		if err != nil {
			return err
		}
		c.Header("Content-Type", ctype)
		http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), rs)
		return nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, contentType(name, data), data)
	return nil
}

// contentType returns the MIME type for name, sniffing data when the
// extension is unknown.
func contentType(name string, data []byte) string {
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		return ctype
	}
	return mimetype.Detect(data).String()
}

func detectContentType(name string, rs io.ReadSeeker) (string, error) {
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		return ctype, nil
	}
	mt, err := mimetype.DetectReader(rs)
	if err != nil {
		return "", err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

// fileErrorStatus maps a file open/read error to a response status.
func fileErrorStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrInvalid):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWithFileError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatus(fileErrorStatus(err))
}

func sizePrinter() *message.Printer {
	return message.NewPrinter(language.English)
}
