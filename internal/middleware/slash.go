package middleware

import (
	"net/http"
	"strings"
)

// TrimSlash canonicalizes paths by redirecting trailing-slash requests to
// their slash-less form, keeping the document and search routes single
// valued for the router. The bare root path passes through.
func TrimSlash() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if len(path) < 2 || !strings.HasSuffix(path, "/") {
				next.ServeHTTP(w, r)
				return
			}

			target := strings.TrimSuffix(path, "/")
			if q := r.URL.RawQuery; q != "" {
				target += "?" + q
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})
	}
}
