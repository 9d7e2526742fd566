package errors

import "fmt"

// AuthError is the fixed, client-safe error taxonomy for the auth flows.
// Raw upstream error text is never forwarded to clients; failures are
// normalized into one of these kinds at the service boundary.
type AuthError struct {
	Kind       string `json:"error"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Error kinds.
const (
	KindMissingCode                = "missing_code"
	KindProviderDenied             = "provider_denied"
	KindCsrfMismatch               = "csrf_mismatch"
	KindProviderExchangeFailed     = "provider_exchange_failed"
	KindProviderProfileUnavailable = "provider_profile_unavailable"
	KindIdentityPersistenceFailed  = "identity_persistence_failed"
	KindInvalidToken               = "invalid_token"
	KindUserNotFound               = "user_not_found"
)

var (
	// ErrMissingCode: the callback arrived without an authorization code.
	ErrMissingCode = &AuthError{KindMissingCode, "Authorization code is missing", 400}

	// ErrProviderDenied: the provider redirected back with an error parameter.
	ErrProviderDenied = &AuthError{KindProviderDenied, "The provider denied the authorization request", 400}

	// ErrCsrfMismatch: state absent, mismatched, expired, or already consumed.
	ErrCsrfMismatch = &AuthError{KindCsrfMismatch, "Login session is invalid or expired, please try again", 400}

	// ErrProviderExchangeFailed: the code-for-token exchange failed.
	ErrProviderExchangeFailed = &AuthError{KindProviderExchangeFailed, "Could not complete sign-in with the provider", 502}

	// ErrProviderProfileUnavailable: the base profile fetch failed. A failed
	// email fetch is NOT this error; it degrades to a profile without email.
	ErrProviderProfileUnavailable = &AuthError{KindProviderProfileUnavailable, "Could not retrieve your profile from the provider", 502}

	// ErrIdentityPersistenceFailed: the user upsert failed.
	ErrIdentityPersistenceFailed = &AuthError{KindIdentityPersistenceFailed, "Could not save your account, please try again", 500}

	// ErrInvalidToken covers signature, expiry, and kind failures uniformly
	// so the wire response does not reveal which check failed.
	ErrInvalidToken = &AuthError{KindInvalidToken, "Invalid or expired token", 401}

	// ErrUserNotFound: a refresh token references a since-deleted user.
	ErrUserNotFound = &AuthError{KindUserNotFound, "Account no longer exists", 401}
)
