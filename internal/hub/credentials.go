package hub

import "context"

// CredentialStatus classifies the outcome of a credential fetch.
type CredentialStatus string

// Credential fetch outcomes. The Client treats them distinctly: Valid
// proceeds to send credentials, NetworkError aborts the connection attempt
// without discarding stored credentials, AuthError aborts and clears them.
const (
	CredentialsValid        CredentialStatus = "valid"
	CredentialsNone         CredentialStatus = "no-credentials"
	CredentialsNetworkError CredentialStatus = "network-error"
	CredentialsAuthError    CredentialStatus = "auth-error"
)

// Credentials is the result shape supplied by the credential collaborator.
type Credentials struct {
	Status CredentialStatus
	Token  string
	URL    string
}

// CredentialSource supplies fresh, non-expired access tokens for
// refresh-token authentication. The core never persists credentials itself;
// storage and the OAuth refresh flow live behind this interface.
type CredentialSource interface {
	// Fresh returns a usable access token, refreshing if necessary.
	Fresh(ctx context.Context) Credentials

	// Clear discards stored credentials after a permanent auth failure.
	Clear() error
}
