package middleware

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// bufferedResponseWriter holds a response until the ETag is known.
type bufferedResponseWriter struct {
	header     http.Header
	buf        bytes.Buffer
	statusCode int
	orig       http.ResponseWriter
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{header: w.Header(), statusCode: http.StatusOK, orig: w}
}

func (w *bufferedResponseWriter) Header() http.Header         { return w.header }
func (w *bufferedResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }
func (w *bufferedResponseWriter) WriteHeader(code int)        { w.statusCode = code }

func (w *bufferedResponseWriter) flushTo() error {
	w.orig.WriteHeader(w.statusCode)
	_, err := w.orig.Write(w.buf.Bytes())
	return err
}

// ETag tags successful GET responses with a weak ETag and answers matching
// If-None-Match requests with 304. Bed and admission reads change often, so
// clients must revalidate on every use.
func ETag() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			// Upgraded connections need the raw writer for hijacking.
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			buf := newBufferedResponseWriter(orig)
			res.Writer = buf
			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}

			if buf.statusCode != http.StatusOK {
				return buf.flushTo()
			}

			etag := computeETag(buf.buf.Bytes())
			res.Header().Set("ETag", etag)
			res.Header().Set("Cache-Control", "private, no-cache")
			res.Header().Set("Vary", "Authorization, X-Tenant-ID")

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flushTo()
		}
	}
}

func computeETag(body []byte) string {
	return fmt.Sprintf(`W/"%x"`, sha1.Sum(body))
}

// etagMatch compares weakly against a comma separated list or "*".
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
