package model

import "time"

// Default preference values applied when an account has no stored preference.
const (
	DefaultLanguage = "en"
	DefaultTone     = "professional"
)

// Account holds one connected Gmail mailbox: its OAuth token pair and the
// per-user reply preferences. EmailAddress is the stable identity; a
// re-authorization rotates tokens in place and never creates a second row.
type Account struct {
	ID                int64
	EmailAddress      string
	AccessToken       string
	RefreshToken      string
	TokenExpiry       time.Time // Zero when the provider did not report one.
	PreferredLanguage string
	PreferredTone     string
	AutoSend          bool // false: replies are recorded as drafts, never delivered.
	ConnectedAt       time.Time
	UpdatedAt         time.Time
}

// Language returns the stored reply language, falling back to DefaultLanguage.
func (a Account) Language() string {
	if a.PreferredLanguage == "" {
		return DefaultLanguage
	}
	return a.PreferredLanguage
}

// Tone returns the stored reply tone, falling back to DefaultTone.
func (a Account) Tone() string {
	if a.PreferredTone == "" {
		return DefaultTone
	}
	return a.PreferredTone
}

// HasToken reports whether the account carries any usable credential.
// Accounts without one are skipped by the scan cycle.
func (a Account) HasToken() bool {
	return a.AccessToken != "" || a.RefreshToken != ""
}

// TokenBundle is the credential triple produced by the authorization-code
// exchange and consumed when opening a provider session.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
