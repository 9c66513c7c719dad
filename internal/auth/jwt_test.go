package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/forum/internal/apperror"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService creates a TokenService with a fixed secret and its own
// in-memory revocation list.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, nil)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// signRaw signs arbitrary claims with the test secret, for tokens Issue
// would never produce.
func signRaw(t *testing.T, c jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", nil)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars", NewMemoryRevocationList())
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// ISSUE / VALIDATE TESTS
// =========================================================================

func TestIssue_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue("alice", true, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Issue() token doesn't look like a JWT: %q", token)
	}

	id, err := ts.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if id.Subject != "alice" || !id.Admin {
		t.Errorf("Validate() = %+v, want alice/admin", id)
	}
	if time.Until(id.ExpiresAt) < 59*time.Minute {
		t.Errorf("ExpiresAt = %v, want about an hour from now", id.ExpiresAt)
	}
}

func TestIssue_UniqueTokenIDs(t *testing.T) {
	ts := newTestTokenService(t)

	a, _ := ts.Issue("alice", false, time.Hour)
	b, _ := ts.Issue("alice", false, time.Hour)
	if a == b {
		t.Error("Issue() returned identical tokens for two logins in the same second")
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Issue("", false, time.Hour); err == nil {
		t.Fatal("Issue() should reject an empty subject")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()

	good, _ := ts.Issue("alice", false, time.Hour)
	zeroTTL, _ := ts.Issue("alice", false, 0)
	expired, _ := ts.Issue("alice", false, -time.Minute)
	other, _ := NewTokenService("another-secret-32-chars-long!!!!", nil)
	foreign, _ := other.Issue("alice", false, time.Hour)

	noAdmin := signRaw(t, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	noSubject := signRaw(t, claims{
		Admin: new(bool),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	noExpiry := signRaw(t, claims{
		Admin:            new(bool),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: issuer},
	})
	wrongIssuer := signRaw(t, claims{
		Admin: new(bool),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "somebody-else",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"zero ttl", zeroTTL},
		{"expired", expired},
		{"different secret", foreign},
		{"missing admin claim", noAdmin},
		{"missing subject", noSubject},
		{"missing expiry", noExpiry},
		{"wrong issuer", wrongIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(context.Background(), tt.token)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Validate() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestValidate_NoneAlgorithm(t *testing.T) {
	ts := newTestTokenService(t)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		Admin: new(bool),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mallory",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	if _, err := ts.Validate(context.Background(), raw); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate() error = %v, want ErrUnauthorized", err)
	}
}

func TestValidate_ExpiresWithClock(t *testing.T) {
	ts := newTestTokenService(t)
	start := time.Now()
	ts.now = func() time.Time { return start }

	token, _ := ts.Issue("alice", false, 10*time.Second)
	if _, err := ts.Validate(context.Background(), token); err != nil {
		t.Fatalf("Validate() before expiry error = %v", err)
	}

	ts.now = func() time.Time { return start.Add(11 * time.Second) }
	if _, err := ts.Validate(context.Background(), token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate() after expiry error = %v, want ErrUnauthorized", err)
	}
}

// =========================================================================
// REVOKE TESTS
// =========================================================================

func TestRevoke(t *testing.T) {
	ts := newTestTokenService(t)
	ctx := context.Background()

	revoked, _ := ts.Issue("alice", false, time.Hour)
	kept, _ := ts.Issue("alice", false, time.Hour)

	if err := ts.Revoke(ctx, revoked); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	if _, err := ts.Validate(ctx, revoked); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate(revoked) error = %v, want ErrUnauthorized", err)
	}
	if _, err := ts.Validate(ctx, kept); err != nil {
		t.Errorf("Validate(other token) error = %v, revoking one token must not affect another", err)
	}
}

func TestRevoke_InvalidToken(t *testing.T) {
	ts := newTestTokenService(t)

	if err := ts.Revoke(context.Background(), "garbage"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Revoke() error = %v, want ErrUnauthorized", err)
	}
}
