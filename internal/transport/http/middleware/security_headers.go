package middleware

import "net/http"

// SecureHeaders sets the console's browser policy. connectSrc lists extra
// origins the SPA may call directly, such as the HR API.
func SecureHeaders(isProd bool, connectSrc ...string) func(http.Handler) http.Handler {
	connect := "connect-src 'self'"
	for _, origin := range connectSrc {
		if origin != "" {
			connect += " " + origin
		}
	}
	csp := "default-src 'self'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'; object-src 'none'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self'; " + connect
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("X-Frame-Options", "DENY")
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Content-Security-Policy", csp)
			headers.Set("Cross-Origin-Opener-Policy", "same-origin")
			if isProd {
				headers.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
