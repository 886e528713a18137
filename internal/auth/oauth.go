package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Identity is a player profile confirmed by an external provider.
type Identity struct {
	Provider    string
	ProviderID  string
	DisplayName string
	AvatarURL   string
}

// OAuthProvider runs the authorization code flow against one provider.
type OAuthProvider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleOAuth creates an OAuthProvider for Google sign-in.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return &OAuthProvider{
		name:        "google",
		userInfoURL: googleUserInfoURL,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

// Name returns the provider name, e.g. "google".
func (p *OAuthProvider) Name() string { return p.name }

// LoginURL returns the consent page URL carrying state.
func (p *OAuthProvider) LoginURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// NewState returns a random value for the state round trip.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type googleProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Exchange trades an authorization code for the player's identity.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("oauth userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("oauth userinfo status %d: %s", resp.StatusCode, body)
	}

	var prof googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&prof); err != nil {
		return nil, fmt.Errorf("oauth userinfo decode: %w", err)
	}
	if prof.ID == "" {
		return nil, fmt.Errorf("oauth userinfo: missing account id")
	}
	name := prof.Name
	if name == "" {
		name = prof.Email
	}
	return &Identity{Provider: p.name, ProviderID: prof.ID, DisplayName: name, AvatarURL: prof.Picture}, nil
}
