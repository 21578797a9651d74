package entity

import "time"

// SessionState is the controller's externally observable lifecycle position.
type SessionState string

const (
	StateIdle            SessionState = "idle"
	StateConnecting      SessionState = "connecting"
	StateChainValidating SessionState = "chain_validating"
	StateAuthenticating  SessionState = "authenticating"
	StateProfileFetching SessionState = "profile_fetching"
	StateAuthenticated   SessionState = "authenticated"

	// Error states, terminal until the user retries.
	StateChainUnsupported    SessionState = "chain_unsupported"
	StateProviderUnavailable SessionState = "provider_unavailable"
	StateLoginFailed         SessionState = "login_failed"

	StateLoggedOut SessionState = "logged_out"
)

// SessionSnapshot is the single source of truth for "are we logged in".
// It is created on successful login, replaced wholesale on any change and
// destroyed on logout or on an irrecoverable account mismatch. The access
// token is excluded from JSON so it can never leak through event payloads
// or API responses; durable persistence uses its own model.
type SessionSnapshot struct {
	WalletType  WalletType `json:"walletType"`
	Account     string     `json:"account"` // lowercase address
	ChainID     int64      `json:"chainId"`
	AccessToken string     `json:"-"`
	UserID      string     `json:"userId"` // subject the token was issued for
	IssuedAt    time.Time  `json:"issuedAt"`
}

// Clone returns a copy so observers never share memory with the controller.
func (s *SessionSnapshot) Clone() *SessionSnapshot {
	if s == nil {
		return nil
	}
	copied := *s

	return &copied
}

// AuthAttempt is a short-lived record describing one in-flight authentication
// attempt. The generation number is compared against the controller's current
// generation to discard completions of superseded attempts. Not persisted.
type AuthAttempt struct {
	Generation uint64
	WalletType WalletType
	Account    string
	StartedAt  time.Time
}
