package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestHandler_ServesStatusPage(t *testing.T) {
	handler := Handler()

	tests := []struct {
		name string
		path string
	}{
		{"root path", "/"},
		{"unknown route", "/links/Unit_A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			if rec.Code != http.StatusOK {
				t.Fatalf("GET %s = %d, want 200", tt.path, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `src="/app.js"`) {
				t.Error("page does not load /app.js")
			}
		})
	}
}

func TestHandler_ServesScript(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /app.js = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"/api/status", "/api/offline", "/api/ws/status"} {
		if !strings.Contains(body, want) {
			t.Errorf("script does not reference %s", want)
		}
	}
}

func TestHandler_ExcludesAPIRoutes(t *testing.T) {
	handler := Handler()

	for _, path := range []string{
		"/api/status",
		"/api/offline",
		"/api/v1/health",
		"/healthz",
		"/readyz",
		"/metrics",
	} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			if rec.Code != http.StatusNotFound {
				t.Errorf("GET %s = %d, want 404", path, rec.Code)
			}
		})
	}
}

func TestHandlerFor_ServesAssets(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html": {Data: []byte("<html>index</html>")},
		"app.css":    {Data: []byte("body{}")},
	}
	handler := handlerFor(fsys)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.css", http.NoBody))
	if rec.Body.String() != "body{}" {
		t.Errorf("GET /app.css body = %q, want the stylesheet", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))
	if !strings.Contains(rec.Body.String(), "index") {
		t.Errorf("GET /missing body = %q, want index fallback", rec.Body.String())
	}
}
