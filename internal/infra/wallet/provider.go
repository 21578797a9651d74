// Package wallet implements the connector registry and the providers it wraps.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	domainerrors "walletd/internal/domain/errors"

	"github.com/pkg/errors"
)

// Provider is the raw wallet-side capability a connector wraps. Implemented
// per wallet type but presented uniformly to the connector handle.
type Provider interface {
	// RequestAccounts asks for an active account, prompting the user on the
	// wallet side when necessary.
	RequestAccounts(ctx context.Context) ([]string, error)

	// Accounts returns the unlocked accounts without prompting.
	Accounts(ctx context.Context) ([]string, error)

	// ChainID returns the chain the provider is currently on.
	ChainID(ctx context.Context) (int64, error)

	// SwitchChain asks the provider to move to the given chain.
	SwitchChain(ctx context.Context, chainID int64) error

	// Disconnect tears down the provider link. Idempotent.
	Disconnect()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return e.Message
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcProvider talks JSON-RPC 2.0 to a wallet provider endpoint. It serves the
// injected and coinbase wallet types, each pointed at its own endpoint.
type rpcProvider struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	nextID     atomic.Uint64
}

// NewRPCProvider is the constructor for rpcProvider.
func NewRPCProvider(endpoint string, timeout time.Duration, logger *slog.Logger) Provider {
	return &rpcProvider{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (p *rpcProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.call(ctx, "eth_requestAccounts", nil, &accounts); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (p *rpcProvider) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.call(ctx, "eth_accounts", nil, &accounts); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (p *rpcProvider) ChainID(ctx context.Context) (int64, error) {
	var raw string
	if err := p.call(ctx, "eth_chainId", nil, &raw); err != nil {
		return 0, err
	}

	chainID, err := strconv.ParseInt(strings.TrimPrefix(raw, "0x"), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "provider returned malformed chain id %q", raw)
	}

	return chainID, nil
}

func (p *rpcProvider) SwitchChain(ctx context.Context, chainID int64) error {
	params := []map[string]string{{"chainId": "0x" + strconv.FormatInt(chainID, 16)}}

	return p.call(ctx, "wallet_switchEthereumChain", params, nil)
}

func (p *rpcProvider) Disconnect() {
	p.httpClient.CloseIdleConnections()
}

// call performs one JSON-RPC round trip. Transport-level failures are mapped
// to ErrProviderUnavailable; provider-level refusals come back as rpcError so
// the caller can distinguish them.
func (p *rpcProvider) call(ctx context.Context, method string, params, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      p.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domainerrors.ErrProviderUnavailable.WrapMessage(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domainerrors.ErrProviderUnavailable.WrapMessage("provider returned status " + resp.Status)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return domainerrors.ErrProviderUnavailable.WrapMessage("malformed provider response")
	}

	if rpcResp.Error != nil {
		p.logger.Debug("provider refused call",
			slog.String("method", method),
			slog.Int("code", rpcResp.Error.Code),
		)

		return errors.WithStack(rpcResp.Error)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return domainerrors.ErrProviderUnavailable.WrapMessage("malformed provider result")
		}
	}

	return nil
}
