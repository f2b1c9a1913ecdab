package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/btangonan/calm-productivity-app-sub002/internal/domain"
)

// ErrUnauthenticated is returned for any missing, malformed, expired, or
// otherwise unverifiable bearer credential.
var ErrUnauthenticated = errors.New("unauthenticated")

var acceptedIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IDTokenClaims describes the issuer's ID token payload.
type IDTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies inbound bearer credentials against the issuer's
// published key set. Pure verification; no side effects.
type Validator struct {
	keys     KeySource
	audience string
}

// NewValidator builds a validator for tokens issued to the given client.
func NewValidator(keys KeySource, clientID string) *Validator {
	return &Validator{keys: keys, audience: clientID}
}

// Validate checks the Authorization header and returns the caller's
// identity. Every failure mode collapses into ErrUnauthenticated; callers
// must treat the session as ended at Identity.ExpiresAt.
func (v *Validator) Validate(ctx context.Context, bearerHeader string) (*domain.Identity, error) {
	raw, err := bearerToken(bearerHeader)
	if err != nil {
		return nil, err
	}

	claims := &IDTokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing key id")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	if !issuerAccepted(claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrUnauthenticated, claims.Issuer)
	}
	if claims.Subject == "" && claims.Email == "" {
		return nil, fmt.Errorf("%w: token carries no identity", ErrUnauthenticated)
	}

	identity := &domain.Identity{
		InternalID: claims.Subject,
		Email:      claims.Email,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", ErrUnauthenticated)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("%w: invalid authorization header", ErrUnauthenticated)
	}
	return parts[1], nil
}

func issuerAccepted(issuer string) bool {
	for _, iss := range acceptedIssuers {
		if issuer == iss {
			return true
		}
	}
	return false
}
