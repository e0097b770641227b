package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveETag(t *testing.T, method, ifNoneMatch string, status int) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/occupancy", nil)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := ETag()(func(c echo.Context) error {
		return c.JSON(status, map[string]int{"total_beds": 4})
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestETag_SetsHeaders(t *testing.T) {
	rec := serveETag(t, http.MethodGet, "", http.StatusOK)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("expected ETag header")
	}
	if rec.Header().Get("Cache-Control") != "private, no-cache" {
		t.Errorf("unexpected Cache-Control %q", rec.Header().Get("Cache-Control"))
	}
	if rec.Body.Len() == 0 {
		t.Error("expected body to be flushed")
	}
}

func TestETag_NotModified(t *testing.T) {
	first := serveETag(t, http.MethodGet, "", http.StatusOK)
	etag := first.Header().Get("ETag")

	rec := serveETag(t, http.MethodGet, etag, http.StatusOK)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("expected empty body on 304")
	}
}

func TestETag_SkipsErrorsAndWrites(t *testing.T) {
	rec := serveETag(t, http.MethodGet, "", http.StatusNotFound)
	if rec.Code != http.StatusNotFound || rec.Header().Get("ETag") != "" {
		t.Errorf("error responses should pass through untagged: %d %q", rec.Code, rec.Header().Get("ETag"))
	}
	rec = serveETag(t, http.MethodPost, "", http.StatusCreated)
	if rec.Code != http.StatusCreated || rec.Header().Get("ETag") != "" {
		t.Errorf("writes should pass through untagged: %d", rec.Code)
	}
}

func TestETagMatch(t *testing.T) {
	tests := []struct {
		header, etag string
		want         bool
	}{
		{`*`, `W/"a"`, true},
		{`W/"a"`, `W/"a"`, true},
		{`"a"`, `W/"a"`, true},
		{`"b", W/"a"`, `W/"a"`, true},
		{`"b"`, `W/"a"`, false},
	}
	for _, tt := range tests {
		if got := etagMatch(tt.header, tt.etag); got != tt.want {
			t.Errorf("etagMatch(%q, %q) = %v, want %v", tt.header, tt.etag, got, tt.want)
		}
	}
}
