package domain

// ProviderEmail is one entry from the provider's email listing.
type ProviderEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ProviderIdentity is an immutable snapshot of a remote profile fetched
// fresh on every login. It is never persisted as-is; the identity resolver
// folds it into a User.
type ProviderIdentity struct {
	ProviderUserID int64
	Login          string
	DisplayName    string
	Bio            string
	AvatarURL      string
	Email          string // selected primary-verified first; may be empty
	Emails         []ProviderEmail
}
