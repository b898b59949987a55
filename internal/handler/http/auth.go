package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/modest-storefront/internal/config"
)

const adminRealm = `Basic realm="storefront-admin", charset="UTF-8"`

// AdminAuth guards the admin routes with HTTP basic auth against the single
// configured credential. The password is checked against its bcrypt hash.
func AdminAuth(cfg config.AdminConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !validCredentials(cfg, username, password) {
				if ok {
					log.Warn().Str("username", username).Str("remote_addr", r.RemoteAddr).Msg("Rejected admin credentials")
				}
				w.Header().Set("WWW-Authenticate", adminRealm)
				respondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validCredentials(cfg config.AdminConfig, username, password string) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password))
	return userMatch && passwordErr == nil
}
