package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(TokenRequest{
		Subject: "workshop-tablet",
		Role:    RoleOperator,
		Issuer:  "printwatch",
		TTL:     time.Hour,
	}, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret, "printwatch")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "workshop-tablet" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("lifetime = %v, want 1h", got)
	}
}

func TestGenerateToken_DefaultTTL(t *testing.T) {
	token, err := GenerateToken(TokenRequest{Subject: "s", Role: RoleViewer}, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret, "")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultTokenTTL {
		t.Errorf("lifetime = %v, want %v", got, DefaultTokenTTL)
	}
}

func TestGenerateToken_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     TokenRequest
		secret  string
		wantErr error
	}{
		{"missing subject", TokenRequest{Role: RoleViewer}, testSecret, ErrMissingSubject},
		{"unknown role", TokenRequest{Subject: "s", Role: "admin"}, testSecret, ErrInvalidRole},
		{"empty role", TokenRequest{Subject: "s"}, testSecret, ErrInvalidRole},
		{"missing secret", TokenRequest{Subject: "s", Role: RoleViewer}, "", ErrMissingSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateToken(tt.req, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GenerateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := GenerateToken(TokenRequest{Subject: "s", Role: RoleViewer, Issuer: "printwatch"}, testSecret)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "s",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleViewer,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing expired token: %v", err)
	}

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "s"},
		Role:             "root",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: RoleViewer}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "s"},
		Role:             RoleViewer,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		secret  string
		issuer  string
		wantErr error
	}{
		{"empty", "", testSecret, "", ErrTokenInvalid},
		{"malformed", "abc.def", testSecret, "", ErrTokenInvalid},
		{"wrong secret", valid, "another-secret-another-secret-1234", "", ErrTokenInvalid},
		{"wrong issuer", valid, testSecret, "someone-else", ErrTokenInvalid},
		{"expired", expired, testSecret, "", ErrTokenExpired},
		{"unknown role", unknownRole, testSecret, "", ErrTokenInvalid},
		{"missing subject", noSubject, testSecret, "", ErrTokenInvalid},
		{"other algorithm", hs512, testSecret, "", ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret, tt.issuer)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRole(t *testing.T) {
	if !RoleOperator.CanOperate() || RoleViewer.CanOperate() {
		t.Error("only operators may operate")
	}
	if Role("").Valid() || Role("admin").Valid() {
		t.Error("unknown roles must be invalid")
	}
}
