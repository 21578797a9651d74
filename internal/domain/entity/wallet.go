// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

// WalletType identifies a connector variant. The set is closed; changing the
// type of an existing session requires a full disconnect/reconnect cycle.
type WalletType string

const (
	WalletTypeInjected      WalletType = "injected"
	WalletTypeWalletConnect WalletType = "walletconnect"
	WalletTypeCoinbase      WalletType = "coinbase"
)

// AllWalletTypes lists every supported connector variant, used for
// exhaustive registry construction and request validation.
func AllWalletTypes() []WalletType {
	return []WalletType{WalletTypeInjected, WalletTypeWalletConnect, WalletTypeCoinbase}
}

// Valid reports whether the wallet type belongs to the closed set.
func (w WalletType) Valid() bool {
	switch w {
	case WalletTypeInjected, WalletTypeWalletConnect, WalletTypeCoinbase:
		return true
	}

	return false
}

func (w WalletType) String() string {
	return string(w)
}
