package federation

import "errors"

var (
	// ErrProviderNotFound indicates no provider is registered under the
	// requested name.
	ErrProviderNotFound = errors.New("federation: provider not found")

	// ErrProviderMisconfigured indicates the provider is missing its client
	// id or secret.
	ErrProviderMisconfigured = errors.New("federation: provider misconfigured")

	// ErrExchangeFailed indicates the code-for-token exchange failed.
	ErrExchangeFailed = errors.New("federation: code exchange failed")

	// ErrFetchProfileFailed indicates the base profile fetch failed. A
	// failed email fetch never produces this error.
	ErrFetchProfileFailed = errors.New("federation: profile fetch failed")
)
