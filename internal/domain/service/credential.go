package service

// Credentials is the login payload submitted to the marketplace backend.
type Credentials struct {
	Username string // the lowercase account address
	Password string // deterministically derived, never logged
}

// CredentialDeriver turns a connected account address into backend login
// credentials. Derivation is a pure function of the address and a process-wide
// shared secret, so the backend can verify the same output across restarts.
//
// Deriving a password from the address rather than a signed challenge is a
// known weakness of the backend protocol; the deriver is kept behind this
// interface so a signature-based handshake can replace it without touching
// the controller.
type CredentialDeriver interface {
	Derive(account string) (Credentials, error)
}
