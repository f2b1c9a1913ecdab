package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/btangonan/calm-productivity-app-sub002/internal/auth"
	"github.com/btangonan/calm-productivity-app-sub002/internal/cache"
	"github.com/btangonan/calm-productivity-app-sub002/internal/domain"
	"github.com/btangonan/calm-productivity-app-sub002/internal/events"
	"github.com/btangonan/calm-productivity-app-sub002/internal/repository"
	apperrors "github.com/btangonan/calm-productivity-app-sub002/pkg/util"
)

// BearerValidator verifies an inbound Authorization header.
type BearerValidator interface {
	Validate(ctx context.Context, bearerHeader string) (*domain.Identity, error)
}

// TokenExchanger talks to the issuer's token and user-info endpoints.
type TokenExchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.AccessGrant, error)
	ExchangeCode(ctx context.Context, code string) (*domain.AccessGrant, string, error)
	UserInfo(ctx context.Context, accessToken string) (*domain.UserProfile, error)
}

// ExchangeResult bundles the outcome of an authorization-code exchange.
type ExchangeResult struct {
	Grant   *domain.AccessGrant
	IDToken string
	Profile *domain.UserProfile
}

// InvalidationResult reports which keys were marked stale and under which
// user scope.
type InvalidationResult struct {
	InvalidatedKeys []string
	Timestamp       int64
	UserPrefix      string
}

// SessionService coordinates token validation, refresh-token exchange,
// credential persistence, and cache invalidation.
type SessionService struct {
	validator   BearerValidator
	tokens      TokenExchanger
	credentials repository.CredentialRepository
	registry    cache.Registry
	events      events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// Dependencies encapsulates collaborator requirements for the service.
type Dependencies struct {
	Validator   BearerValidator
	Tokens      TokenExchanger
	Credentials repository.CredentialRepository
	Registry    cache.Registry
	Events      events.Dispatcher
}

// NewSessionService builds the service.
func NewSessionService(deps Dependencies, logger *zap.Logger) *SessionService {
	return &SessionService{
		validator:   deps.Validator,
		tokens:      deps.Tokens,
		credentials: deps.Credentials,
		registry:    deps.Registry,
		events:      deps.Events,
		logger:      logger,
		now:         time.Now,
	}
}

// Validate verifies the bearer header and returns the caller's identity.
func (s *SessionService) Validate(ctx context.Context, bearerHeader string) (*domain.Identity, error) {
	identity, err := s.validator.Validate(ctx, bearerHeader)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid or expired token")
	}
	return identity, nil
}

// ExchangeCode trades an authorization code for tokens and enriches the
// result with the issuer's profile. Failure of either round trip is an
// exchange failure; the issuer body travels as gated diagnostic only.
func (s *SessionService) ExchangeCode(ctx context.Context, code string) (*ExchangeResult, error) {
	grant, idToken, err := s.tokens.ExchangeCode(ctx, code)
	if err != nil {
		if errors.Is(err, auth.ErrMissingCode) {
			return nil, apperrors.NewBadRequest("MISSING_CODE", "authorization code is required")
		}
		return nil, exchangeFailure(err)
	}

	profile, err := s.tokens.UserInfo(ctx, grant.AccessToken)
	if err != nil {
		return nil, exchangeFailure(err)
	}

	return &ExchangeResult{Grant: grant, IDToken: idToken, Profile: profile}, nil
}

// StoreToken persists the caller's refresh credential, updating the
// existing row in place or appending a new one.
func (s *SessionService) StoreToken(ctx context.Context, identity *domain.Identity, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.NewBadRequest("MISSING_REFRESH_TOKEN", "refreshToken is required")
	}

	record := domain.CredentialRecord{
		InternalID:   identity.InternalID,
		Email:        identity.Email,
		RefreshToken: refreshToken,
	}
	if err := s.credentials.Upsert(ctx, record); err != nil {
		s.logger.Error("credential upsert failed", zap.String("email", identity.Email), zap.Error(err))
		return apperrors.NewUpstreamFailure("STORE_FAILED", "failed to persist refresh token",
			http.StatusBadGateway, err.Error())
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTokenStored,
		UserScope: cache.ScopeFor(*identity),
		Payload:   events.TokenStoredPayload{Email: identity.Email},
	})
	return nil
}

// Refresh exchanges a refresh credential for a new access grant. An empty
// credential fails fast before any network call; a rejected one is
// terminal, so no retry happens here.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.AccessGrant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.NewBadRequest("MISSING_REFRESH_TOKEN", "refreshToken is required")
	}

	grant, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrMissingRefreshToken) {
			return nil, apperrors.NewBadRequest("MISSING_REFRESH_TOKEN", "refreshToken is required")
		}
		var upstream *auth.UpstreamError
		if errors.As(err, &upstream) {
			return nil, apperrors.NewUpstreamFailure("REFRESH_FAILED", "token refresh failed",
				http.StatusUnauthorized, upstream.Body)
		}
		return nil, apperrors.NewUpstreamFailure("REFRESH_FAILED", "token refresh failed",
			http.StatusUnauthorized, err.Error())
	}

	s.publish(ctx, events.Event{
		Type:    events.EventTokenRefreshed,
		Payload: events.TokenRefreshedPayload{ExpiresIn: grant.ExpiresIn},
	})
	return grant, nil
}

// RefreshForUser mints a new access grant from the stored refresh
// credential. This is the refresh-on-demand path data loaders use when the
// client has not supplied a credential of its own.
func (s *SessionService) RefreshForUser(ctx context.Context, email string) (*domain.AccessGrant, error) {
	refreshToken, err := s.credentials.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("refresh credential", map[string]any{"email": email})
		}
		return nil, apperrors.NewUpstreamFailure("STORE_FAILED", "failed to read refresh token",
			http.StatusBadGateway, err.Error())
	}
	return s.Refresh(ctx, refreshToken)
}

// InvalidateCache marks the caller's cache keys stale so subsequent reads
// bypass cached data until the marks expire or are cleared.
func (s *SessionService) InvalidateCache(ctx context.Context, identity *domain.Identity, keys []string) (*InvalidationResult, error) {
	if len(keys) == 0 {
		return nil, apperrors.NewBadRequest("MISSING_CACHE_KEYS", "cacheKeys is required")
	}

	scope := cache.ScopeFor(*identity)
	if err := s.registry.MarkInvalidated(ctx, scope, keys); err != nil {
		return nil, apperrors.NewUpstreamFailure("INVALIDATE_FAILED", "failed to record invalidation",
			http.StatusBadGateway, err.Error())
	}

	s.publish(ctx, events.Event{
		Type:      events.EventCacheInvalidated,
		UserScope: scope,
		Payload:   events.CacheInvalidatedPayload{Keys: keys},
	})

	return &InvalidationResult{
		InvalidatedKeys: keys,
		Timestamp:       s.now().UnixMilli(),
		UserPrefix:      scope,
	}, nil
}

// CacheFresh reports whether a cached payload for the key may be served.
func (s *SessionService) CacheFresh(ctx context.Context, identity *domain.Identity, key string) (bool, error) {
	stale, err := s.registry.IsInvalidated(ctx, cache.ScopeFor(*identity), key)
	if err != nil {
		return false, err
	}
	return !stale, nil
}

// MarkFetched clears an invalidation mark once a fresh value has been
// computed for the key.
func (s *SessionService) MarkFetched(ctx context.Context, identity *domain.Identity, key string) error {
	return s.registry.MarkFresh(ctx, cache.ScopeFor(*identity), key)
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	_ = s.events.Publish(ctx, event)
}

func exchangeFailure(err error) error {
	var upstream *auth.UpstreamError
	if errors.As(err, &upstream) {
		return apperrors.NewUpstreamFailure("EXCHANGE_FAILED", "authorization code exchange failed",
			http.StatusBadRequest, upstream.Body)
	}
	return apperrors.NewUpstreamFailure("EXCHANGE_FAILED", "authorization code exchange failed",
		http.StatusBadRequest, err.Error())
}
