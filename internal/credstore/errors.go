package credstore

import "errors"

var (
	// ErrNoCredentials indicates no credentials are stored.
	ErrNoCredentials = errors.New("credstore: no credentials stored")

	// ErrAuthRejected is returned by a RefreshFunc when the hub rejects
	// the refresh token permanently; the store clears itself in response.
	ErrAuthRejected = errors.New("credstore: refresh token rejected")
)
