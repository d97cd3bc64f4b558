package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/bag"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const sessionHeader = "X-Session-Id"

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// Session attaches the shopper's session handle. The handle comes from the session cookie or
// the X-Session-Id header; a missing or malformed handle is replaced by a fresh one.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "sf_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(sessionHeader))
			if id == "" {
				if cookie, err := r.Cookie(cookieName); err == nil {
					id = strings.TrimSpace(cookie.Value)
				}
			}
			if !sessionPattern.MatchString(id) {
				id = uuid.NewString()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.BagTTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(sessionHeader, id)

			ctx := WithSessionID(r.Context(), bag.SessionID(id))
			if logg != nil {
				ctx = logg.WithSessionID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
