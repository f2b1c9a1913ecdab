package dto

// ExchangeCodeRequest is the body for action=exchange-code.
type ExchangeCodeRequest struct {
	Code string `json:"code"`
}

// StoreTokenRequest is the body for action=store-token.
type StoreTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshRequest is the body for action=refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// InvalidateCacheRequest is the body for POST /cache/invalidate.
type InvalidateCacheRequest struct {
	CacheKeys []string `json:"cacheKeys"`
}

// ValidatedUser is the user payload returned by action=validate.
type ValidatedUser struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ExchangeTokens is the tokens payload returned by action=exchange-code.
type ExchangeTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RefreshTokens is the tokens payload returned by action=refresh.
type RefreshTokens struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// InvalidationData is the data payload returned by POST /cache/invalidate.
type InvalidationData struct {
	InvalidatedKeys []string `json:"invalidatedKeys"`
	Timestamp       int64    `json:"timestamp"`
	UserPrefix      string   `json:"userPrefix"`
}
