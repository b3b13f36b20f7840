package server

import "net/http"

// ReadOnlyMiddleware rejects every method except GET, HEAD and OPTIONS.
// Used when the dashboard is exposed on a shared network and nobody should
// be able to trigger reports or restart the gateway from it.
func ReadOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			MethodNotAllowed(w, "server is running in read-only mode", r.URL.Path)
		}
	})
}
