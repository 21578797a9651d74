package config

import "testing"

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"wallet": map[string]any{
			"supportedChainId": 1,
			"walletConnect": map[string]any{
				"bridgeUrl": "",
			},
		},
		"marketplace": map[string]any{
			"baseUrl": "",
		},
		"secretKey": map[string]any{
			"login": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "WALLET_SUPPORTEDCHAINID", want: "wallet.supportedChainId"},
		{envKey: "WALLET_WALLETCONNECT_BRIDGEURL", want: "wallet.walletConnect.bridgeUrl"},
		{envKey: "MARKETPLACE_BASEURL", want: "marketplace.baseUrl"},
		{envKey: "SECRETKEY_LOGIN", want: "secretKey.login"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}
