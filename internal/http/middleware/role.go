package middleware

import (
	"net/http"

	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/internal/session"
)

// LoginPath is where unauthorized requests are sent.
const LoginPath = "/login"

// RequireRole lets the request through only when the session carries an
// identity with the given role. Anything else is redirected to the login page
// without a message. session.Middleware must run first.
func RequireRole(role records.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if sess == nil || !sess.HasRole(role) {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
