package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)
	subject := uuid.NewString()

	token, jti, err := m.GenerateAccessToken(subject)
	if err != nil {
		t.Fatal(err)
	}
	if jti == "" {
		t.Fatal("expected a jti")
	}

	claims, err := m.ParseAndValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != subject {
		t.Fatalf("expected subject %s got %s", subject, claims.Subject)
	}
	if claims.ID != jti {
		t.Fatalf("expected jti %s got %s", jti, claims.ID)
	}
}

func TestRejectsExpired(t *testing.T) {
	m := NewJWTManager(testSecret, -time.Minute)
	token, _, err := m.GenerateAccessToken(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseAndValidate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestRejectsWrongKey(t *testing.T) {
	issuer := NewJWTManager(testSecret, time.Minute)
	verifier := NewJWTManager(strings.Repeat("x", 32), time.Minute)

	token, _, err := issuer.GenerateAccessToken(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ParseAndValidate(token); err == nil {
		t.Fatal("expected wrong-key token to be rejected")
	}
}

func TestRejectsMissingSubject(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)

	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseAndValidate(token); err == nil {
		t.Fatal("expected token without subject to be rejected")
	}
}

func TestRejectsUnsignedAlgorithm(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)

	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseAndValidate(token); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}
