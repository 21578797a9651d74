// Package impl contains the concrete use case services.
package impl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"walletd/config"
	"walletd/internal/domain/entity"
	domainerrors "walletd/internal/domain/errors"
	"walletd/internal/domain/repository"
	"walletd/internal/domain/service"
	"walletd/internal/errors"
	"walletd/internal/usecase"
)

const inboxDepth = 64

// Inbox messages. Commands come from callers, results from attempt
// goroutines; everything is applied in arrival order on the run loop.
type connectCmd struct {
	walletType entity.WalletType
	reply      chan error
}

type logoutCmd struct {
	reply chan error
}

type restoreCmd struct {
	reply chan error
}

type driftEvent struct {
	account string
	chainID int64
}

// phaseMsg moves the observable state forward while an attempt is in flight.
type phaseMsg struct {
	gen   uint64
	state entity.SessionState
}

// attemptResult finishes an authentication attempt. Exactly one of snapshot
// or failState is meaningful.
type attemptResult struct {
	gen       uint64
	snapshot  *entity.SessionSnapshot
	failState entity.SessionState
	errCode   string
	err       error
}

// restoreMatch confirms a silent restore: the live connector still reports
// the persisted account and chain, so the stored token is reusable.
type restoreMatch struct {
	gen      uint64
	snapshot *entity.SessionSnapshot
}

// restoreStale reports that the live account no longer matches the persisted
// one; the old token must be purged and a fresh attempt started.
type restoreStale struct {
	gen         uint64
	liveAccount string
}

type profileResult struct {
	gen     uint64
	profile *entity.UserProfile
	err     error
}

// authController is the single owner of the session state machine. The run
// loop is the only writer of the snapshot and the store; attempt goroutines
// never touch state directly, they post results tagged with the generation
// they were started under, and stale results are discarded.
type authController struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  service.ConnectorRegistry
	deriver   service.CredentialDeriver
	auth      service.AuthClient
	store     repository.SessionStore
	publisher service.SessionEventPublisher

	inbox chan any

	mu          sync.RWMutex
	state       entity.SessionState
	snapshot    *entity.SessionSnapshot
	profile     *entity.UserProfile
	lastErrCode string

	// Run-loop-only fields, never read outside the loop.
	generation uint64
	walletType entity.WalletType
	loggedOut  bool
	attempt    *entity.AuthAttempt
}

// NewAuthController is the constructor for authController.
func NewAuthController(
	cfg *config.Config,
	logger *slog.Logger,
	registry service.ConnectorRegistry,
	deriver service.CredentialDeriver,
	auth service.AuthClient,
	store repository.SessionStore,
	publisher service.SessionEventPublisher,
) usecase.SessionUsecase {
	return &authController{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		deriver:   deriver,
		auth:      auth,
		store:     store,
		publisher: publisher,
		inbox:     make(chan any, inboxDepth),
		state:     entity.StateIdle,
	}
}

// Run processes the inbox until the context is cancelled.
func (c *authController) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.inbox:
			c.dispatch(ctx, msg)
		}
	}
}

func (c *authController) Restore(ctx context.Context) error {
	return c.send(ctx, restoreCmd{reply: make(chan error, 1)})
}

func (c *authController) Connect(ctx context.Context, walletType entity.WalletType) error {
	if !walletType.Valid() {
		return domainerrors.ErrUnknownWalletType.WrapMessage(walletType.String())
	}
	if _, err := c.registry.Resolve(walletType); err != nil {
		return err
	}

	return c.send(ctx, connectCmd{walletType: walletType, reply: make(chan error, 1)})
}

func (c *authController) Logout(ctx context.Context) error {
	return c.send(ctx, logoutCmd{reply: make(chan error, 1)})
}

func (c *authController) NotifyDrift(ctx context.Context, account string, chainID int64) {
	select {
	case c.inbox <- driftEvent{account: account, chainID: chainID}:
	case <-ctx.Done():
	}
}

func (c *authController) Current() (*entity.SessionSnapshot, entity.SessionState) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snapshot.Clone(), c.state
}

func (c *authController) Profile() *entity.UserProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.profile == nil {
		return nil
	}
	copied := *c.profile

	return &copied
}

func (c *authController) LastErrorCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastErrCode
}

// send posts a replying command and waits for the loop to accept it.
func (c *authController) send(ctx context.Context, msg any) error {
	var reply chan error
	switch m := msg.(type) {
	case connectCmd:
		reply = m.reply
	case logoutCmd:
		reply = m.reply
	case restoreCmd:
		reply = m.reply
	}

	select {
	case c.inbox <- msg:
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

func (c *authController) dispatch(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case connectCmd:
		m.reply <- c.applyConnect(ctx, m)
	case logoutCmd:
		m.reply <- c.applyLogout(ctx)
	case restoreCmd:
		m.reply <- c.applyRestore(ctx)
	case driftEvent:
		c.applyDrift(ctx, m)
	case phaseMsg:
		if c.isCurrent(m.gen) {
			c.setState(ctx, m.state, "")
		}
	case attemptResult:
		c.applyAttemptResult(ctx, m)
	case restoreMatch:
		c.applyRestoreMatch(ctx, m)
	case restoreStale:
		c.applyRestoreStale(ctx, m)
	case profileResult:
		c.applyProfileResult(ctx, m)
	default:
		c.logger.Warn("Dropping unknown controller message")
	}
}

// applyConnect starts a user-initiated authentication attempt.
func (c *authController) applyConnect(ctx context.Context, cmd connectCmd) error {
	// Switching wallet type requires a full disconnect/reconnect cycle; a
	// retry on the same type keeps any existing session until the new
	// login replaces it.
	if c.snapshot != nil && c.snapshot.WalletType != cmd.walletType {
		c.teardownSession(ctx, c.snapshot.WalletType)
	}

	c.loggedOut = false
	c.walletType = cmd.walletType
	c.startAttempt(ctx, cmd.walletType, "")

	return nil
}

// applyLogout executes an explicit user logout: disconnect, clear the store,
// drop in-memory state. Idempotent, and the logged-out flag makes it win any
// race against drift events queued before the logout completed.
func (c *authController) applyLogout(ctx context.Context) error {
	c.loggedOut = true
	c.generation++ // discard any in-flight attempt
	c.attempt = nil

	c.teardownSession(ctx, c.walletType)
	c.setState(ctx, entity.StateLoggedOut, "")

	return nil
}

// applyRestore attempts a silent reconnect from the persisted snapshot.
func (c *authController) applyRestore(ctx context.Context) error {
	persisted, err := c.store.Load(ctx)
	if err != nil || persisted == nil {
		return err
	}
	if !persisted.WalletType.Valid() {
		c.logger.Warn("Persisted session has unknown wallet type, clearing",
			slog.String("wallet_type", persisted.WalletType.String()),
		)

		return c.store.Clear(ctx)
	}

	c.loggedOut = false
	c.walletType = persisted.WalletType
	gen := c.nextGeneration(persisted.WalletType, persisted.Account)
	c.setState(ctx, entity.StateConnecting, "")

	go c.runRestore(ctx, gen, persisted)

	return nil
}

// applyDrift reconciles a reported divergence between the live connector and
// the current snapshot. Logout wins: events queued before a logout completed
// are dropped here.
func (c *authController) applyDrift(ctx context.Context, ev driftEvent) {
	if c.loggedOut || c.snapshot == nil {
		return
	}
	if ev.account == c.snapshot.Account && ev.chainID == c.snapshot.ChainID {
		return
	}

	c.logger.Info("Session drift detected, re-authenticating",
		slog.String("wallet_type", c.walletType.String()),
		slog.String("stored_account", c.snapshot.Account),
		slog.String("live_account", ev.account),
		slog.Int64("live_chain_id", ev.chainID),
	)

	// Purge the old token before anything else runs: there must be no
	// window where it could be associated with the new account.
	c.dropSession(ctx)
	c.startAttempt(ctx, c.walletType, ev.account)
}

// startAttempt bumps the generation and launches the authentication pipeline.
func (c *authController) startAttempt(ctx context.Context, walletType entity.WalletType, account string) {
	gen := c.nextGeneration(walletType, account)
	c.clearProfile()
	c.setState(ctx, entity.StateConnecting, "")

	go c.runAttempt(ctx, gen, walletType)
}

// nextGeneration invalidates all in-flight work and records the new attempt.
func (c *authController) nextGeneration(walletType entity.WalletType, account string) uint64 {
	c.generation++
	c.attempt = &entity.AuthAttempt{
		Generation: c.generation,
		WalletType: walletType,
		Account:    account,
		StartedAt:  time.Now(),
	}

	return c.generation
}

// isCurrent reports whether a completion still belongs to the live attempt.
// Stale completions are discarded without side effects; whatever they did
// against the backend is not undone, but it never reaches the snapshot or
// the store.
func (c *authController) isCurrent(gen uint64) bool {
	if gen == c.generation {
		return true
	}

	c.logger.Debug("Discarding stale attempt completion",
		slog.Uint64("completion_generation", gen),
		slog.Uint64("current_generation", c.generation),
	)

	return false
}

// runAttempt drives connect → validate chain → login off the run loop and
// posts results back tagged with its generation.
func (c *authController) runAttempt(ctx context.Context, gen uint64, walletType entity.WalletType) {
	// Re-resolve by wallet type instead of holding a handle across the
	// async boundary.
	connector, err := c.registry.Resolve(walletType)
	if err != nil {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateProviderUnavailable, errCode: domainerrors.ErrProviderUnavailable.ErrorCode(), err: err})

		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.Wallet.ConnectTimeout)
	account, err := connector.Connect(connectCtx)
	cancel()
	if err != nil {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateProviderUnavailable, errCode: domainerrors.ErrProviderUnavailable.ErrorCode(), err: err})

		return
	}

	c.post(ctx, phaseMsg{gen: gen, state: entity.StateChainValidating})

	chainID, err := c.validateChain(ctx, gen, connector)
	if err != nil {
		return // validateChain posted the outcome
	}

	c.post(ctx, phaseMsg{gen: gen, state: entity.StateAuthenticating})

	creds, err := c.deriver.Derive(account)
	if err != nil {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateLoginFailed, errCode: domainerrors.ErrInvalidAccount.ErrorCode(), err: err})

		return
	}

	result, err := c.auth.Login(ctx, creds)
	if err != nil {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateLoginFailed, errCode: domainerrors.ErrLoginFailed.ErrorCode(), err: err})

		return
	}

	c.post(ctx, attemptResult{gen: gen, snapshot: &entity.SessionSnapshot{
		WalletType:  walletType,
		Account:     account,
		ChainID:     chainID,
		AccessToken: result.AccessToken,
		UserID:      result.UserID,
		IssuedAt:    time.Now(),
	}})
}

// validateChain checks the connector against the single supported chain and
// issues at most one corrective switch request. A refusal is terminal: the
// attempt ends logged out with the store cleared, so an unsupported chain
// never leaves a stale session behind.
func (c *authController) validateChain(ctx context.Context, gen uint64, connector service.Connector) (int64, error) {
	supported := c.cfg.Wallet.SupportedChainID

	chainID, err := connector.CurrentChainID(ctx)
	if err != nil {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateProviderUnavailable, errCode: domainerrors.ErrProviderUnavailable.ErrorCode(), err: err})

		return 0, err
	}
	if chainID == supported {
		return chainID, nil
	}

	c.post(ctx, phaseMsg{gen: gen, state: entity.StateChainUnsupported})

	refused := connector.SwitchChain(ctx, supported)
	if refused == nil {
		if chainID, err = connector.CurrentChainID(ctx); err == nil && chainID == supported {
			return chainID, nil
		}
	}

	err = domainerrors.ErrChainUnsupported.WrapMessage("provider refused to switch networks")
	c.post(ctx, attemptResult{gen: gen, failState: entity.StateLoggedOut, errCode: domainerrors.ErrChainUnsupported.ErrorCode(), err: err})

	return 0, err
}

// runRestore checks whether the persisted session still matches the live
// connector without prompting the user.
func (c *authController) runRestore(ctx context.Context, gen uint64, persisted *entity.SessionSnapshot) {
	connector, err := c.registry.Resolve(persisted.WalletType)
	if err != nil {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateProviderUnavailable, errCode: domainerrors.ErrProviderUnavailable.ErrorCode(), err: err})

		return
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.Wallet.ConnectTimeout)
	defer cancel()

	account, err := connector.CurrentAccount(queryCtx)
	if err != nil || account == "" {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateProviderUnavailable, errCode: domainerrors.ErrProviderUnavailable.ErrorCode(), err: err})

		return
	}

	chainID, err := connector.CurrentChainID(queryCtx)
	if err != nil {
		c.post(ctx, attemptResult{gen: gen, failState: entity.StateProviderUnavailable, errCode: domainerrors.ErrProviderUnavailable.ErrorCode(), err: err})

		return
	}

	if account == persisted.Account && chainID == persisted.ChainID {
		c.post(ctx, restoreMatch{gen: gen, snapshot: persisted})

		return
	}

	c.post(ctx, restoreStale{gen: gen, liveAccount: account})
}

func (c *authController) applyAttemptResult(ctx context.Context, result attemptResult) {
	if !c.isCurrent(result.gen) {
		return
	}

	if result.snapshot != nil {
		c.adoptSnapshot(ctx, result.snapshot, true)

		return
	}

	if result.err != nil {
		c.logger.Error("Authentication attempt failed",
			slog.String("state", string(result.failState)),
			slog.String("error", result.err.Error()),
		)
	}

	switch result.failState {
	case entity.StateLoggedOut:
		// Chain-mismatch hard failure: clear everything.
		c.teardownSession(ctx, c.walletType)
	case entity.StateLoginFailed:
		// A fresh attempt leaves no half-written session behind; a failed
		// re-login next to an existing valid session leaves it untouched.
		if c.snapshot == nil {
			if err := c.store.Clear(ctx); err != nil {
				c.logger.Error("Failed to clear session store", "error", err)
			}
		}
	}

	c.attempt = nil
	c.setState(ctx, result.failState, result.errCode)
}

func (c *authController) applyRestoreMatch(ctx context.Context, m restoreMatch) {
	if !c.isCurrent(m.gen) {
		return
	}

	c.logger.Info("Restored persisted session without re-login",
		slog.String("wallet_type", m.snapshot.WalletType.String()),
		slog.String("account", m.snapshot.Account),
	)

	// Already persisted; no save needed.
	c.adoptSnapshot(ctx, m.snapshot, false)
}

func (c *authController) applyRestoreStale(ctx context.Context, m restoreStale) {
	if !c.isCurrent(m.gen) {
		return
	}

	c.logger.Info("Persisted session is stale, re-authenticating",
		slog.String("live_account", m.liveAccount),
	)

	// The old token must never be reused for the new account.
	c.dropSession(ctx)
	c.startAttempt(ctx, c.walletType, m.liveAccount)
}

func (c *authController) applyProfileResult(ctx context.Context, result profileResult) {
	if !c.isCurrent(result.gen) {
		return
	}

	if result.err != nil {
		// The profile is a cache, not a gate: the session stays
		// authenticated without one.
		c.logger.Error("Profile fetch failed, continuing without profile",
			slog.String("error", result.err.Error()),
		)
		c.setState(ctx, entity.StateAuthenticated, domainerrors.ErrProfileFetchFailed.ErrorCode())

		return
	}

	c.mu.Lock()
	c.profile = result.profile
	c.mu.Unlock()

	c.setState(ctx, entity.StateAuthenticated, "")
}

// adoptSnapshot installs a confirmed session and kicks off the profile fetch.
func (c *authController) adoptSnapshot(ctx context.Context, snapshot *entity.SessionSnapshot, persist bool) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.profile = nil
	c.mu.Unlock()

	if persist {
		if err := c.store.Save(ctx, snapshot); err != nil {
			// The in-memory session is still valid; only restart-restore
			// is degraded.
			c.logger.Error("Failed to persist session snapshot", "error", err)
		}
	}

	c.attempt = nil
	c.setState(ctx, entity.StateProfileFetching, "")

	gen := c.generation
	go func() {
		profile, err := c.auth.FetchProfile(ctx, snapshot.AccessToken, snapshot.UserID)
		c.post(ctx, profileResult{gen: gen, profile: profile, err: err})
	}()
}

// teardownSession disconnects the connector and erases all session state.
func (c *authController) teardownSession(ctx context.Context, walletType entity.WalletType) {
	if walletType.Valid() {
		if connector, err := c.registry.Resolve(walletType); err == nil {
			connector.Disconnect()
		}
	}

	c.dropSession(ctx)
}

// dropSession clears the store and the in-memory snapshot synchronously.
func (c *authController) dropSession(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("Failed to clear session store", "error", err)
	}

	c.mu.Lock()
	c.snapshot = nil
	c.profile = nil
	c.mu.Unlock()
}

func (c *authController) clearProfile() {
	c.mu.Lock()
	c.profile = nil
	c.mu.Unlock()
}

// setState records the observable state and publishes the change.
func (c *authController) setState(ctx context.Context, state entity.SessionState, errCode string) {
	c.mu.Lock()
	c.state = state
	c.lastErrCode = errCode
	snapshot := c.snapshot.Clone()
	c.mu.Unlock()

	if c.publisher == nil {
		return
	}
	event := &service.SessionEvent{
		State:     state,
		Snapshot:  snapshot,
		ErrorCode: errCode,
		At:        time.Now(),
	}
	if err := c.publisher.PublishSessionChanged(ctx, event); err != nil {
		c.logger.Warn("Failed to publish session event", "error", err)
	}
}

// post delivers a loop-internal message, giving up when the controller shuts
// down before the message can be accepted.
func (c *authController) post(ctx context.Context, msg any) {
	select {
	case c.inbox <- msg:
	case <-ctx.Done():
	}
}
