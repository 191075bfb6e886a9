package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWTService() *JWTService {
	return NewJWTService(JWTConfig{
		Enabled:           true,
		SigningKey:        "test-secret-key-at-least-32-chars!",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "notify-dispatch-test",
		Audience:          "notify-dispatch-api",
	})
}

func TestGenerateAccessToken(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateAccessToken("svc-attendance", "school-42", RoleSender)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}
}

func TestValidateAccessToken_Valid(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateAccessToken("svc-attendance", "school-42", RoleSender)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}

	if claims.Subject != "svc-attendance" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "svc-attendance")
	}
	if claims.TenantID != "school-42" {
		t.Errorf("TenantID = %q, want %q", claims.TenantID, "school-42")
	}
	if claims.Role != RoleSender {
		t.Errorf("Role = %q, want %q", claims.Role, RoleSender)
	}
	if claims.Issuer != "notify-dispatch-test" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "notify-dispatch-test")
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := NewJWTService(JWTConfig{
		SigningKey:        "test-secret-key-at-least-32-chars!",
		AccessTokenExpiry: -1 * time.Hour, // already expired
	})

	token, err := svc.GenerateAccessToken("s", "t", RoleSender)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	_, err = svc.ValidateAccessToken(token)
	if err != ErrTokenExpired {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenExpired)
	}
}

func TestValidateAccessToken_InvalidSignature(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateAccessToken("s", "t", RoleSender)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	otherSvc := NewJWTService(JWTConfig{
		SigningKey:        "completely-different-signing-key!!",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "notify-dispatch-test",
		Audience:          "notify-dispatch-api",
	})

	if _, err := otherSvc.ValidateAccessToken(token); err != ErrTokenInvalid {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenInvalid)
	}
}

func TestValidateAccessToken_WrongAudience(t *testing.T) {
	token, err := newTestJWTService().GenerateAccessToken("s", "t", RoleSender)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	other := NewJWTService(JWTConfig{
		SigningKey:        "test-secret-key-at-least-32-chars!",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "notify-dispatch-test",
		Audience:          "some-other-api",
	})
	if _, err := other.ValidateAccessToken(token); err != ErrTokenInvalid {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenInvalid)
	}
}

func TestValidateAccessToken_Malformed(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.ValidateAccessToken("not-a-jwt-token")
	if err != ErrTokenMalformed {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenMalformed)
	}
}

func TestValidateAccessToken_WrongSigningMethod(t *testing.T) {
	svc := newTestJWTService()

	claims := AccessTokenClaims{
		TenantID: "t",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if _, err := svc.ValidateAccessToken(signed); err == nil {
		t.Error("ValidateAccessToken() accepted an unsigned token")
	}
}
