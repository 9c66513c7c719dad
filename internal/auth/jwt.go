// Package auth issues and checks the bearer tokens of the forum API, hashes
// passwords, and provides the HTTP middleware that resolves a request to a
// user.
//
// TOKEN FLOW:
//  1. POST /api/users/login verifies the password and calls Issue.
//  2. The client sends the token back as "Authorization: Bearer <token>"
//     (or in the "token" cookie set on login).
//  3. Middleware calls Validate, then loads the user row named by the token
//     subject and stores it in the request context.
//  4. POST /api/users/logout calls Revoke; the token is refused from then on
//     until it would have expired anyway.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"alice","admin":false,"iss":"forum","exp":...,"jti":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/forum/internal/apperror"
)

const issuer = "forum"

// Identity is what a valid token says about its bearer.
type Identity struct {
	Subject   string
	Admin     bool
	ExpiresAt time.Time
}

// TokenService signs, validates and revokes tokens.
type TokenService struct {
	secret      []byte
	revocations RevocationList
	now         func() time.Time
}

// NewTokenService creates a TokenService with the given secret. A nil
// revocations list gets a process-local MemoryRevocationList.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, revocations RevocationList) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if revocations == nil {
		revocations = NewMemoryRevocationList()
	}
	return &TokenService{secret: []byte(secret), revocations: revocations, now: time.Now}, nil
}

// claims is the JWT payload. Admin is a pointer so a token that omits the
// claim can be told apart from one that says false.
type claims struct {
	Admin *bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for subject that expires after ttl.
//
// A zero or negative ttl produces a token that is already expired.
func (s *TokenService) Issue(subject string, admin bool, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: token subject must not be empty")
	}
	now := s.now()

	c := claims{
		Admin: &admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string.
//
// VALIDATION CHECKS:
//   - Signature is valid and the algorithm is HS256 (no "none", no RS/HS confusion)
//   - Issuer is "forum"
//   - exp is present and strictly in the future
//   - sub and admin claims are both present
//   - The token is not on the revocation list
//
// Every failure is an apperror Unauthorized.
func (s *TokenService) Validate(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, apperror.Unauthorized("missing token")
	}

	token, err := jwt.ParseWithClaims(
		raw,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperror.Unauthorized("token expired")
		}
		return Identity{}, apperror.Unauthorized("invalid token")
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, apperror.Unauthorized("invalid token claims")
	}

	expires := c.ExpiresAt.Time
	if !s.now().Before(expires) {
		return Identity{}, apperror.Unauthorized("token expired")
	}
	if c.Subject == "" || c.Admin == nil {
		return Identity{}, apperror.Unauthorized("token is missing required claims")
	}

	revoked, err := s.revocations.IsRevoked(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: checking revocation: %w", err)
	}
	if revoked {
		return Identity{}, apperror.Unauthorized("token revoked")
	}

	return Identity{Subject: c.Subject, Admin: *c.Admin, ExpiresAt: expires}, nil
}

// Revoke puts raw on the revocation list until it expires. Tokens that do not
// validate cannot be revoked and return Unauthorized.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	id, err := s.Validate(ctx, raw)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, raw, id.ExpiresAt); err != nil {
		return fmt.Errorf("auth: revoking token: %w", err)
	}
	return nil
}
