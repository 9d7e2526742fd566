package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes the two first-party token types. Both kinds are
// signed with the same key, so the kind claim is the only thing preventing
// a refresh token from being accepted where an access token is expected.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims are the claims carried by every first-party token.
type TokenClaims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token pair bound to a local user id.
// Pairs are never mutated; a new login supersedes the previous pair.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"` // access token lifetime, seconds
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}
