package domain

// CredentialRecord maps a user identity to their long-lived refresh
// credential. One record per user, keyed by email.
type CredentialRecord struct {
	InternalID   string
	Email        string
	RefreshToken string
}

// AccessGrant is a short-lived access credential plus metadata. Transient;
// the caller holds it for the remainder of its validity window. RefreshToken
// is empty when the issuer did not rotate it, in which case the caller keeps
// the original.
type AccessGrant struct {
	AccessToken  string
	ExpiresIn    int64
	TokenType    string
	RefreshToken string
}
