package services

import (
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService mints and verifies the first-party signed token pairs. All
// tokens are self-contained; nothing is stored server-side, so a minted
// pair stays valid until its own expiry.
type TokenService struct {
	signer     *TokenSigner
	secretKey  string
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a TokenService.
func NewTokenService(signer *TokenSigner, secretKey, issuer string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		signer:     signer,
		secretKey:  secretKey,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// MintPair mints an access/refresh pair bound to the local user id. Both
// tokens are signed with the same key; only the kind claim tells them
// apart, which is why Verify's kind check is mandatory.
func (s *TokenService) MintPair(userID string) (*domain.TokenPair, error) {
	access, err := s.mint(userID, domain.TokenKindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(userID, domain.TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(s.accessTTL.Seconds()),
		RefreshExpiresIn: int64(s.refreshTTL.Seconds()),
	}, nil
}

// MintAccess mints a new access token only, used by the refresh flow. The
// refresh token is not rotated in this design.
func (s *TokenService) MintAccess(userID string) (string, error) {
	return s.mint(userID, domain.TokenKindAccess, s.accessTTL)
}

func (s *TokenService) mint(userID string, kind domain.TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := domain.TokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return s.signer.Sign(claims, "")
}

// Verify checks signature, expiry, and the kind claim. Every failure
// collapses into ErrInvalidToken so callers (and the wire) cannot tell
// which check failed.
func (s *TokenService) Verify(tokenString string, expectedKind domain.TokenKind) (*domain.TokenClaims, error) {
	var claims domain.TokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, autherrors.ErrInvalidToken
	}
	if claims.Kind != expectedKind {
		return nil, autherrors.ErrInvalidToken
	}
	return &claims, nil
}

// IsExpiringSoon reports whether the claims expire within threshold. Used
// for proactive client-side refresh; this is a convenience, not a trust
// boundary.
func IsExpiringSoon(claims *domain.TokenClaims, threshold time.Duration) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return time.Until(claims.ExpiresAt.Time) <= threshold
}
