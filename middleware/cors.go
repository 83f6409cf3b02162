package middleware

import (
	"net/http"
	"os"
	"strings"
)

// CORSMiddleware allows the configured frontend origins, with credentials,
// and the headers the ETag-based notes flow needs (If-Match in, ETag out).
// Override origins via CORS_ORIGINS="http://localhost:5173,http://127.0.0.1:5173".
func CORSMiddleware(next http.Handler) http.Handler {
	raw := os.Getenv("CORS_ORIGINS")
	if raw == "" {
		raw = "http://localhost:5173,http://127.0.0.1:5173"
	}
	allowed := make(map[string]bool)
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		// No Origin header means same-origin or curl; let it through as-is.
		if origin != "" && allowed[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, If-Match, If-None-Match, Authorization")
			h.Set("Access-Control-Expose-Headers", "ETag")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
