package middleware

import (
	"net/http"
	"strings"

	"github.com/keygatehq/keygate/internal/service"
)

// RequireAdmin returns an HTTP middleware that guards the administrative
// endpoints. It accepts either of:
//
//  1. the shared admin secret via the X-Admin-Secret header
//  2. a JWT session token (obtained from the session endpoint) via the
//     Authorization Bearer header
//
// On failure a 401 JSON error response is returned.
func RequireAdmin(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret := r.Header.Get("X-Admin-Secret"); secret != "" {
				if err := authSvc.VerifySecret(secret); err != nil {
					writeAuthError(w, "Invalid admin secret")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token := strings.TrimPrefix(authHeader, "Bearer ")
				if err := authSvc.ValidateSession(token); err != nil {
					writeAuthError(w, "Invalid or expired session token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			writeAuthError(w, "Admin authentication required. Provide X-Admin-Secret header or Bearer token.")
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	// Manually construct JSON to avoid an import cycle with the handler package
	w.Write([]byte(`{"error":{"code":401,"message":"` + message + `"}}`))
}
