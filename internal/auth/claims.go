package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL applies when a non-positive TTL is requested.
const DefaultTokenTTL = 15 * time.Minute

// Claims are the JWT claims carried by printwatch bearer tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// TokenRequest describes a token to mint.
type TokenRequest struct {
	Subject string
	Role    Role
	Issuer  string
	TTL     time.Duration
}

// GenerateToken signs an HS256 token for req.
//
// Parameters:
//   - req: Subject and role are required; TTL defaults to DefaultTokenTTL
//   - secret: HMAC key, security.jwt.secret
//
// Returns:
//   - string: The compact serialised token
//   - error: ErrInvalidRole, ErrMissingSubject or a signing failure
func GenerateToken(req TokenRequest, secret string) (string, error) {
	if req.Subject == "" {
		return "", ErrMissingSubject
	}
	if !req.Role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if secret == "" {
		return "", ErrMissingSecret
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			Issuer:    req.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: req.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, algorithm and expiry and returns the claims.
// A non-empty issuer must match the token's iss claim.
func ParseToken(tokenString, secret, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}
