package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// initTestSecret forces a known secret for the whole test binary.
func initTestSecret(t *testing.T) {
	t.Helper()
	SetJWTSecret("test-secret-0123456789abcdef0123456789abcdef")
}

func TestGenerateAndValidateJWT(t *testing.T) {
	initTestSecret(t)

	token, err := GenerateJWT("user-1", "inspector@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Email != "inspector@example.com" {
		t.Errorf("Email = %q, want inspector@example.com", claims.Email)
	}
	if claims.Issuer != "safesite" {
		t.Errorf("Issuer = %q, want safesite", claims.Issuer)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
}

func TestValidateJWT_Expired(t *testing.T) {
	initTestSecret(t)

	token, err := GenerateJWT("user-1", "x@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ValidateJWT(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	initTestSecret(t)

	if _, err := ValidateJWT("not.a.token"); err == nil {
		t.Error("expected error for malformed token, got nil")
	}
}

func TestValidateJWT_WrongSigningMethod(t *testing.T) {
	initTestSecret(t)

	// Unsigned token must be rejected by the signing method check.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := ValidateJWT(raw); err == nil {
		t.Error("expected error for alg=none token, got nil")
	}
}

func TestValidateJWT_TamperedSignature(t *testing.T) {
	initTestSecret(t)

	token, err := GenerateJWT("user-1", "x@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := ValidateJWT(tampered); err == nil {
		t.Error("expected error for tampered signature, got nil")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2hunter2" {
		t.Error("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2hunter2") {
		t.Error("CheckPassword rejected correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword accepted wrong password")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password, got nil")
	}
}
