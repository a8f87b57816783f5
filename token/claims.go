package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type discriminators. Embedded in the claims so an access token can
// never be replayed against the refresh endpoint or vice versa.
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// AccessClaims is the payload of a short-lived access token. It carries the
// subject's role ids so request-path authorization needs no session lookup.
type AccessClaims struct {
	Type    string   `json:"typ"`
	RoleIDs []string `json:"roles"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. ChainID identifies the
// rotation chain; RotationID is the single-use marker that must match the
// stored one for the rotation to succeed.
type RefreshClaims struct {
	Type       string `json:"typ"`
	ChainID    string `json:"chain"`
	RotationID string `json:"rot"`
	jwt.RegisteredClaims
}

// Subject is the verified identity extracted from an access token.
type Subject struct {
	UserID  uuid.UUID
	RoleIDs []uuid.UUID
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}
