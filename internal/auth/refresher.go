package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/btangonan/calm-productivity-app-sub002/internal/config"
	"github.com/btangonan/calm-productivity-app-sub002/internal/domain"
)

// ErrMissingRefreshToken is returned before any network call when the
// refresh credential is empty.
var ErrMissingRefreshToken = errors.New("missing refresh token")

// ErrMissingCode is returned before any network call when the
// authorization code is empty.
var ErrMissingCode = errors.New("missing authorization code")

// UpstreamError reports a non-success response from the issuer. Body holds
// the issuer's error payload for diagnostics; it is never surfaced to end
// users in production mode.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: issuer returned status %d", e.Op, e.StatusCode)
}

// TokenClient exchanges credentials at the issuer's token and user-info
// endpoints. Each exchange is a single round trip; a failed refresh is
// terminal and retrying is the caller's decision.
type TokenClient struct {
	oauth       oauth2.Config
	userInfoURL string
	http        *http.Client
}

// NewTokenClient builds a client from issuer configuration.
func NewTokenClient(cfg config.GoogleConfig) *TokenClient {
	return &TokenClient{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.TokenEndpoint,
				// the issuer accepts credentials in the form body
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoEndpoint,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

// Refresh exchanges a refresh credential for a new access grant. When the
// issuer does not rotate the refresh token the returned grant's
// RefreshToken is empty and the caller retains the original.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*domain.AccessGrant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrMissingRefreshToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	// the seed token carries no access token, so the source always performs
	// exactly one token-endpoint round trip
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, upstreamFrom("token refresh", err)
	}
	return grantFrom(tok), nil
}

// ExchangeCode trades an authorization code for tokens. The second return
// value is the issuer's ID token, used by callers to establish identity.
func (c *TokenClient) ExchangeCode(ctx context.Context, code string) (*domain.AccessGrant, string, error) {
	if strings.TrimSpace(code) == "" {
		return nil, "", ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", upstreamFrom("code exchange", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	return grantFrom(tok), idToken, nil
}

// UserInfo fetches the issuer's profile for the access token's owner.
func (c *TokenClient) UserInfo(ctx context.Context, accessToken string) (*domain.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Op: "user info", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("user info: decode: %w", err)
	}
	return &profile, nil
}

func upstreamFrom(op string, err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		status := 0
		if retrieve.Response != nil {
			status = retrieve.Response.StatusCode
		}
		return &UpstreamError{Op: op, StatusCode: status, Body: string(retrieve.Body)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func grantFrom(tok *oauth2.Token) *domain.AccessGrant {
	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(math.Round(time.Until(tok.Expiry).Seconds()))
	}
	return &domain.AccessGrant{
		AccessToken:  tok.AccessToken,
		ExpiresIn:    expiresIn,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
	}
}
