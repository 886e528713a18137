package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// TokenKind separates short-lived API tokens from refresh tokens so one
// cannot stand in for the other.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims holds the JWT payload.
type Claims struct {
	PlayerID string    `json:"player_id"`
	Kind     TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// JWTManager issues and checks the bearer tokens of players.
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewJWTManager creates a JWTManager signing with secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  15 * time.Minute,
		refreshExpiry: 7 * 24 * time.Hour,
	}
}

func (m *JWTManager) sign(playerID string, kind TokenKind, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		PlayerID: playerID,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   playerID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// GenerateAccessToken creates a short-lived API token for playerID.
func (m *JWTManager) GenerateAccessToken(playerID string) (string, error) {
	return m.sign(playerID, AccessToken, m.accessExpiry)
}

// GenerateRefreshToken creates a long-lived token that can only be traded
// for a new pair.
func (m *JWTManager) GenerateRefreshToken(playerID string) (string, error) {
	return m.sign(playerID, RefreshToken, m.refreshExpiry)
}

// ValidateToken parses tokenStr and checks it is a live token of the given kind.
func (m *JWTManager) ValidateToken(tokenStr string, kind TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Kind != kind || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenPair holds an access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// GenerateTokenPair creates both tokens for a player.
func (m *JWTManager) GenerateTokenPair(playerID string) (*TokenPair, error) {
	access, err := m.GenerateAccessToken(playerID)
	if err != nil {
		return nil, err
	}
	refresh, err := m.GenerateRefreshToken(playerID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(m.accessExpiry.Seconds()),
	}, nil
}

// Refresh trades a refresh token for a new pair.
func (m *JWTManager) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := m.ValidateToken(refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}
	return m.GenerateTokenPair(claims.PlayerID)
}
