package httpapi

import (
	"errors"
	"net/http"

	"github.com/lyric-s/together-app-backend/internal/audit"
	"github.com/lyric-s/together-app-backend/internal/auth"
)

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	UserType     auth.Kind `json:"user_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleLogin implements the OAuth2 password flow for volunteers and
// associations: form-encoded username/password in, bearer pair out.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, "")
}

// handleAdminLogin authenticates against the admins table; issued tokens
// carry the admin mode claim checked by admin-only gates.
func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, auth.KindAdmin)
}

func (a *API) login(w http.ResponseWriter, r *http.Request, kind auth.Kind) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	pair, principal, err := a.auth.Login(r.Context(), username, password, kind)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			unauthorized(w, r, "incorrect username or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"principal_id":   principal.ID,
		"principal_kind": string(principal.Kind),
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		UserType:     principal.Kind,
	})
}

// handleRefresh rotates a refresh token. Expired, malformed and reused
// tokens are indistinguishable in the response.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, principal, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshFailed) {
			unauthorized(w, r, "invalid or expired refresh token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		UserType:     principal.Kind,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "not authenticated")
		return
	}
	if err := a.auth.Logout(r.Context(), principal); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"principal_id":   principal.ID,
		"principal_kind": string(principal.Kind),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}
