package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "client-123.apps.googleusercontent.com"

func testSigner(t *testing.T) (*rsa.PrivateKey, *Validator) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	validator := NewValidator(StaticKeySource{"test-key": &key.PublicKey}, testClientID)
	return key, validator
}

func mintToken(t *testing.T, key *rsa.PrivateKey, kid string, claims *IDTokenClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims(expiresAt time.Time) *IDTokenClaims {
	return &IDTokenClaims{
		Email:         "u@example.com",
		EmailVerified: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "sub-123",
			Audience:  jwt.ClaimStrings{testClientID},
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
}

func TestValidateReturnsIdentityWithTokenExpiry(t *testing.T) {
	key, validator := testSigner(t)
	expiresAt := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	bearer := "Bearer " + mintToken(t, key, "test-key", baseClaims(expiresAt))

	identity, err := validator.Validate(context.Background(), bearer)
	require.NoError(t, err)
	assert.Equal(t, "sub-123", identity.InternalID)
	assert.Equal(t, "u@example.com", identity.Email)
	assert.True(t, identity.ExpiresAt.Equal(expiresAt))
}

func TestValidateRejectsMissingHeader(t *testing.T) {
	_, validator := testSigner(t)

	_, err := validator.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsMalformedHeader(t *testing.T) {
	_, validator := testSigner(t)

	for _, header := range []string{"Bearer", "Basic abc123", "Bearer ", "nonsense"} {
		_, err := validator.Validate(context.Background(), header)
		assert.ErrorIs(t, err, ErrUnauthenticated, "header %q", header)
	}
}

func TestValidateRejectsGarbageToken(t *testing.T) {
	_, validator := testSigner(t)

	_, err := validator.Validate(context.Background(), "Bearer not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	key, validator := testSigner(t)

	bearer := "Bearer " + mintToken(t, key, "test-key", baseClaims(time.Now().Add(-time.Minute)))

	_, err := validator.Validate(context.Background(), bearer)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	key, validator := testSigner(t)

	claims := baseClaims(time.Now().Add(time.Hour))
	claims.Audience = jwt.ClaimStrings{"someone-else"}
	bearer := "Bearer " + mintToken(t, key, "test-key", claims)

	_, err := validator.Validate(context.Background(), bearer)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	key, validator := testSigner(t)

	claims := baseClaims(time.Now().Add(time.Hour))
	claims.Issuer = "https://evil.example.com"
	bearer := "Bearer " + mintToken(t, key, "test-key", claims)

	_, err := validator.Validate(context.Background(), bearer)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsUnknownSigningKey(t *testing.T) {
	key, validator := testSigner(t)

	bearer := "Bearer " + mintToken(t, key, "other-key", baseClaims(time.Now().Add(time.Hour)))

	_, err := validator.Validate(context.Background(), bearer)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	_, validator := testSigner(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	bearer := "Bearer " + mintToken(t, otherKey, "test-key", baseClaims(time.Now().Add(time.Hour)))

	_, err = validator.Validate(context.Background(), bearer)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestValidateRejectsHMACToken(t *testing.T) {
	_, validator := testSigner(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims(time.Now().Add(time.Hour)))
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), "Bearer "+signed)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
