// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"walletd/config"
	domainerrors "walletd/internal/domain/errors"
	"walletd/internal/domain/service"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// hmacDeriver derives backend login credentials from an account address and a
// process-wide shared secret. Deterministic: the same account always yields
// the same credentials, so the backend can verify them across restarts.
type hmacDeriver struct {
	secret []byte
}

// NewCredentialDeriver is the constructor for hmacDeriver.
func NewCredentialDeriver(cfg *config.Config) (service.CredentialDeriver, error) {
	if cfg.SecretKey.Login == "" {
		return nil, errors.New("login shared secret must be provided")
	}

	return &hmacDeriver{secret: []byte(cfg.SecretKey.Login)}, nil
}

// Derive validates and normalizes the address, then produces the login payload.
func (d *hmacDeriver) Derive(account string) (service.Credentials, error) {
	normalized, err := NormalizeAddress(account)
	if err != nil {
		return service.Credentials{}, err
	}

	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(normalized))

	return service.Credentials{
		Username: normalized,
		Password: hex.EncodeToString(mac.Sum(nil)),
	}, nil
}

// NormalizeAddress lowercases a 0x-prefixed 20-byte hex address. A mixed-case
// input must carry a valid EIP-55 checksum; all-lower and all-upper inputs are
// accepted as checksum-less.
func NormalizeAddress(account string) (string, error) {
	if len(account) != 42 || !strings.HasPrefix(account, "0x") {
		return "", domainerrors.ErrInvalidAccount.WrapMessage("address must be 0x-prefixed 40 hex chars")
	}

	body := account[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", domainerrors.ErrInvalidAccount.WrapMessage("address is not valid hex")
	}

	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if checksumAddress(lower) != body {
			return "", domainerrors.ErrInvalidAccount.WrapMessage("address checksum mismatch")
		}
	}

	return "0x" + lower, nil
}

// checksumAddress computes the EIP-55 mixed-case form of a lowercase hex body.
func checksumAddress(lower string) string {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	digest := hash.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = byte(strings.ToUpper(string(c))[0])
		}
	}

	return string(out)
}
