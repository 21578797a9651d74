package wallet

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// pairingProvider serves bridge-based wallets (the walletconnect type). The
// first account request establishes a pairing: a topic-scoped URI is rendered
// as a QR code for the user to scan with their mobile wallet, then the bridge
// is polled for approval through the normal RPC surface.
type pairingProvider struct {
	rpc       Provider
	bridgeURL string
	qrPath    string
	logger    *slog.Logger

	mu     sync.Mutex
	paired bool
	topic  string
}

// NewPairingProvider is the constructor for pairingProvider.
func NewPairingProvider(bridgeURL, qrPath string, timeout time.Duration, logger *slog.Logger) Provider {
	return &pairingProvider{
		rpc:       NewRPCProvider(bridgeURL, timeout, logger),
		bridgeURL: bridgeURL,
		qrPath:    qrPath,
		logger:    logger,
	}
}

func (p *pairingProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	if err := p.ensurePairing(); err != nil {
		return nil, err
	}

	return p.rpc.RequestAccounts(ctx)
}

func (p *pairingProvider) Accounts(ctx context.Context) ([]string, error) {
	return p.rpc.Accounts(ctx)
}

func (p *pairingProvider) ChainID(ctx context.Context) (int64, error) {
	return p.rpc.ChainID(ctx)
}

func (p *pairingProvider) SwitchChain(ctx context.Context, chainID int64) error {
	return p.rpc.SwitchChain(ctx, chainID)
}

func (p *pairingProvider) Disconnect() {
	p.mu.Lock()
	p.paired = false
	p.topic = ""
	p.mu.Unlock()

	p.rpc.Disconnect()
}

// ensurePairing writes the pairing QR code once per bridge session.
func (p *pairingProvider) ensurePairing() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paired {
		return nil
	}

	p.topic = uuid.New().String()
	pairingURI := "wc:" + p.topic + "@2?relay-protocol=irn&bridge=" + url.QueryEscape(p.bridgeURL)

	if p.qrPath != "" {
		if err := qrcode.WriteFile(pairingURI, qrcode.Medium, 256, p.qrPath); err != nil {
			return errors.Wrap(err, "failed to write pairing QR code")
		}
		p.logger.Info("Pairing QR code ready, scan it with your wallet",
			slog.String("path", p.qrPath),
		)
	}

	p.paired = true

	return nil
}
