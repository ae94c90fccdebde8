package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lyric-s/together-app-backend/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// requireAuth gates a route group on a valid access token. The zero Kind
// accepts any authenticated principal; a concrete kind additionally returns
// 403 when the token's principal kind does not match.
func (a *API) requireAuth(required auth.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r.Header.Get(authHeader))
			if err != nil {
				unauthorized(w, r, "not authenticated")
				return
			}

			principal, err := a.auth.Identify(r.Context(), token, required)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrForbidden):
					writeError(w, r, http.StatusForbidden, "insufficient permissions")
				case errors.Is(err, auth.ErrUnauthorized):
					unauthorized(w, r, "could not validate credentials")
				default:
					writeError(w, r, http.StatusInternalServerError, "authentication error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, r, http.StatusUnauthorized, msg)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
