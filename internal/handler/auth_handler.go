package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/repower/internal/auth"
	"github.com/freeeve/repower/internal/repository"
)

const oauthStateCookie = "repower_oauth_state"

// IdentityProvider is an external sign-in flow such as Google.
type IdentityProvider interface {
	Name() string
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, error)
}

// AuthHandler issues token pairs: through an identity provider, through the
// development login, or by refresh.
type AuthHandler struct {
	provider IdentityProvider // nil when no provider is configured
	jwtMgr   *auth.JWTManager
	userRepo repository.UserRepository
	devLogin bool
}

// NewAuthHandler creates an AuthHandler. provider may be nil.
func NewAuthHandler(provider IdentityProvider, jwtMgr *auth.JWTManager, userRepo repository.UserRepository, devLogin bool) *AuthHandler {
	return &AuthHandler{provider: provider, jwtMgr: jwtMgr, userRepo: userRepo, devLogin: devLogin}
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, provider, providerID, name, avatar string) {
	user, err := h.userRepo.Upsert(r.Context(), provider, providerID, name, avatar)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("Failed to upsert user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	tokens, err := h.jwtMgr.GenerateTokenPair(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}
	log.Info().Str("playerId", user.ID).Str("provider", provider).Msg("Player signed in")
	writeJSON(w, http.StatusOK, tokens)
}

// ProviderLogin handles GET /auth/google/login: it redirects to the
// provider's consent screen with a state cookie for the callback to check.
func (h *AuthHandler) ProviderLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	state, err := auth.NewState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start login")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.LoginURL(state), http.StatusTemporaryRedirect)
}

// ProviderCallback handles GET /auth/google/callback.
func (h *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code parameter")
		return
	}
	id, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		log.Warn().Err(err).Str("provider", h.provider.Name()).Msg("OAuth exchange failed")
		writeError(w, http.StatusUnauthorized, "sign-in failed")
		return
	}
	h.issue(w, r, id.Provider, id.ProviderID, id.DisplayName, id.AvatarURL)
}

// RefreshToken handles POST /auth/refresh.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.jwtMgr.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// DevLogin handles POST /auth/dev: it signs in a local player by name.
// Only available when DEV_LOGIN is set.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.devLogin {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxDisplayName {
		writeError(w, http.StatusBadRequest, "name must be 1 to 64 characters")
		return
	}
	h.issue(w, r, "dev", "dev-"+strings.ToLower(name), name, "")
}
