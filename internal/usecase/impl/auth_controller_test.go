package impl

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletd/config"
	"walletd/internal/domain/entity"
	domainerrors "walletd/internal/domain/errors"
	"walletd/internal/domain/repository"
	"walletd/internal/domain/service"
	"walletd/internal/errors"
	"walletd/internal/usecase"
)

const (
	testChainID  int64 = 11155111
	otherChainID int64 = 1
	accountA           = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	accountB           = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Wallet.SupportedChainID = testChainID
	cfg.Wallet.ConnectTimeout = time.Second
	cfg.Watcher.PollInterval = 10 * time.Millisecond

	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startController(
	t *testing.T,
	registry service.ConnectorRegistry,
	store repository.SessionStore,
	auth service.AuthClient,
	publisher service.SessionEventPublisher,
) usecase.SessionUsecase {
	t.Helper()

	ctrl := NewAuthController(testConfig(), discardLogger(), registry, fakeDeriver{}, auth, store, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = ctrl.Run(ctx) }()

	return ctrl
}

func waitForState(t *testing.T, ctrl usecase.SessionUsecase, want entity.SessionState) {
	t.Helper()

	require.Eventually(t, func() bool {
		_, state := ctrl.Current()

		return state == want
	}, 2*time.Second, 5*time.Millisecond, "controller never reached state %s", want)
}

func waitForAccount(t *testing.T, ctrl usecase.SessionUsecase, account string) {
	t.Helper()

	require.Eventually(t, func() bool {
		snapshot, state := ctrl.Current()

		return state == entity.StateAuthenticated && snapshot != nil && snapshot.Account == account
	}, 2*time.Second, 5*time.Millisecond, "controller never authenticated as %s", account)
}

func TestConnectHappyPath(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	store := &fakeStore{}
	auth := &fakeAuthClient{}
	publisher := &recordingPublisher{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, publisher)

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)

	snapshot, state := ctrl.Current()
	require.Equal(t, entity.StateAuthenticated, state)
	require.NotNil(t, snapshot)
	assert.Equal(t, entity.WalletTypeInjected, snapshot.WalletType)
	assert.Equal(t, accountA, snapshot.Account)
	assert.Equal(t, testChainID, snapshot.ChainID)
	assert.Equal(t, "token-for-"+accountA, snapshot.AccessToken)
	assert.Equal(t, "user-"+accountA, snapshot.UserID)
	assert.False(t, snapshot.IssuedAt.IsZero())

	persisted := store.current()
	require.NotNil(t, persisted)
	assert.Equal(t, snapshot.AccessToken, persisted.AccessToken)

	require.Eventually(t, func() bool {
		return ctrl.Profile() != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "user-"+accountA, ctrl.Profile().ID)

	assert.Empty(t, ctrl.LastErrorCode())
	assert.Equal(t, []entity.SessionState{
		entity.StateConnecting,
		entity.StateChainValidating,
		entity.StateAuthenticating,
		entity.StateProfileFetching,
		entity.StateAuthenticated,
	}, publisher.states())
}

func TestConnectRejectsUnknownWalletType(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	ctrl := startController(t, newFakeRegistry(connector), &fakeStore{}, &fakeAuthClient{}, &recordingPublisher{})

	err := ctrl.Connect(context.Background(), entity.WalletType("ledger"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUnknownWalletType))

	// Still a valid type name, just not configured.
	err = ctrl.Connect(context.Background(), entity.WalletTypeCoinbase)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUnknownWalletType))

	_, state := ctrl.Current()
	assert.Equal(t, entity.StateIdle, state)
}

func TestConnectProviderUnavailable(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	connector.connectErr = domainerrors.ErrProviderUnavailable.WrapMessage("extension not responding")
	store := &fakeStore{}
	ctrl := startController(t, newFakeRegistry(connector), store, &fakeAuthClient{}, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForState(t, ctrl, entity.StateProviderUnavailable)

	snapshot, _ := ctrl.Current()
	assert.Nil(t, snapshot)
	assert.Equal(t, "PROVIDER_UNAVAILABLE", ctrl.LastErrorCode())
	assert.Zero(t, store.saveCount())
}

func TestConnectTimesOutOnUnresponsiveProvider(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	connector.connectGate = make(chan struct{}) // never closed
	ctrl := startController(t, newFakeRegistry(connector), &fakeStore{}, &fakeAuthClient{}, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForState(t, ctrl, entity.StateProviderUnavailable)
	assert.Equal(t, "PROVIDER_UNAVAILABLE", ctrl.LastErrorCode())
}

func TestChainMismatchSwitchSucceeds(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, otherChainID)
	auth := &fakeAuthClient{}
	publisher := &recordingPublisher{}
	ctrl := startController(t, newFakeRegistry(connector), &fakeStore{}, auth, publisher)

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)

	snapshot, _ := ctrl.Current()
	assert.Equal(t, testChainID, snapshot.ChainID)
	assert.Equal(t, 1, connector.switches())
	assert.Contains(t, publisher.states(), entity.StateChainUnsupported)
}

func TestChainMismatchSwitchRefused(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, otherChainID)
	connector.switchErr = domainerrors.ErrChainUnsupported.WrapMessage("user rejected")
	store := &fakeStore{}
	auth := &fakeAuthClient{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForState(t, ctrl, entity.StateLoggedOut)

	snapshot, _ := ctrl.Current()
	assert.Nil(t, snapshot)
	assert.Equal(t, "CHAIN_UNSUPPORTED", ctrl.LastErrorCode())
	assert.Equal(t, 1, connector.switches())
	assert.GreaterOrEqual(t, connector.disconnects(), 1)
	assert.GreaterOrEqual(t, store.clearCount(), 1)
	assert.Zero(t, auth.logins(), "login must not run on an unsupported chain")
}

func TestLoginFailureLeavesNoSession(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	auth := &fakeAuthClient{loginErr: domainerrors.ErrLoginFailed.WrapMessage("401")}
	store := &fakeStore{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForState(t, ctrl, entity.StateLoginFailed)

	snapshot, _ := ctrl.Current()
	assert.Nil(t, snapshot)
	assert.Equal(t, "LOGIN_FAILED", ctrl.LastErrorCode())
	assert.Nil(t, store.current())
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	store := &fakeStore{}
	ctrl := startController(t, newFakeRegistry(connector), store, &fakeAuthClient{}, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)

	require.NoError(t, ctrl.Logout(context.Background()))
	require.NoError(t, ctrl.Logout(context.Background()))

	snapshot, state := ctrl.Current()
	assert.Equal(t, entity.StateLoggedOut, state)
	assert.Nil(t, snapshot)
	assert.Nil(t, ctrl.Profile())
	assert.Nil(t, store.current())
	assert.GreaterOrEqual(t, connector.disconnects(), 1)
}

func TestLogoutDiscardsInFlightAttempt(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	gate := make(chan struct{})
	connector.connectGate = gate
	store := &fakeStore{}
	auth := &fakeAuthClient{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForState(t, ctrl, entity.StateConnecting)

	require.NoError(t, ctrl.Logout(context.Background()))
	close(gate) // the pending wallet approval resolves after the logout

	// The stale completion must not resurrect the session.
	time.Sleep(100 * time.Millisecond)
	snapshot, state := ctrl.Current()
	assert.Equal(t, entity.StateLoggedOut, state)
	assert.Nil(t, snapshot)
	assert.Zero(t, store.saveCount())
	assert.Nil(t, store.current())
}

func TestSupersededLoginCompletionIsDiscarded(t *testing.T) {
	t.Parallel()

	injected := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	coinbase := newFakeConnector(entity.WalletTypeCoinbase, accountB, testChainID)
	gate := make(chan struct{})
	auth := &fakeAuthClient{loginGate: gate, gateUser: accountA}
	store := &fakeStore{}
	ctrl := startController(t, newFakeRegistry(injected, coinbase), store, auth, &recordingPublisher{})

	// The first attempt parks inside the backend login call.
	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	require.Eventually(t, func() bool {
		return auth.logins() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// A second attempt supersedes it and fully authenticates.
	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeCoinbase))
	waitForAccount(t, ctrl, accountB)

	// The suspended login now resolves with a token for the old account.
	// It belongs to a dead generation and must not touch the snapshot or
	// the store.
	close(gate)
	time.Sleep(100 * time.Millisecond)

	snapshot, state := ctrl.Current()
	require.Equal(t, entity.StateAuthenticated, state)
	require.NotNil(t, snapshot)
	assert.Equal(t, entity.WalletTypeCoinbase, snapshot.WalletType)
	assert.Equal(t, accountB, snapshot.Account)
	assert.Equal(t, "token-for-"+accountB, snapshot.AccessToken)
	assert.Equal(t, 1, store.saveCount())
	assert.Equal(t, "token-for-"+accountB, store.current().AccessToken)
}

func TestDriftToNewAccountPurgesOldToken(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	store := &fakeStore{}
	auth := &fakeAuthClient{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)

	connector.setAccount(accountB)
	ctrl.NotifyDrift(context.Background(), accountB, testChainID)
	waitForAccount(t, ctrl, accountB)

	snapshot, _ := ctrl.Current()
	assert.Equal(t, "token-for-"+accountB, snapshot.AccessToken)
	assert.Equal(t, "user-"+accountB, snapshot.UserID)

	// The first account's token was cleared before the new login persisted.
	assert.Equal(t, []string{"save", "clear", "save"}, store.operations())
	assert.Equal(t, "token-for-"+accountB, store.current().AccessToken)
	assert.Equal(t, 2, auth.logins())
}

func TestDriftMatchingSnapshotIsIgnored(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	auth := &fakeAuthClient{}
	ctrl := startController(t, newFakeRegistry(connector), &fakeStore{}, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)

	ctrl.NotifyDrift(context.Background(), accountA, testChainID)
	time.Sleep(50 * time.Millisecond)

	_, state := ctrl.Current()
	assert.Equal(t, entity.StateAuthenticated, state)
	assert.Equal(t, 1, auth.logins())
}

func TestDriftAfterLogoutIsIgnored(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	auth := &fakeAuthClient{}
	ctrl := startController(t, newFakeRegistry(connector), &fakeStore{}, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)
	require.NoError(t, ctrl.Logout(context.Background()))

	ctrl.NotifyDrift(context.Background(), accountB, testChainID)
	time.Sleep(50 * time.Millisecond)

	_, state := ctrl.Current()
	assert.Equal(t, entity.StateLoggedOut, state)
	assert.Equal(t, 1, auth.logins())
}

func TestRestoreSilentlyReusesMatchingSession(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	store := &fakeStore{snapshot: &entity.SessionSnapshot{
		WalletType:  entity.WalletTypeInjected,
		Account:     accountA,
		ChainID:     testChainID,
		AccessToken: "persisted-token",
		UserID:      "user-persisted",
		IssuedAt:    time.Now().Add(-time.Hour),
	}}
	auth := &fakeAuthClient{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Restore(context.Background()))
	waitForAccount(t, ctrl, accountA)

	snapshot, _ := ctrl.Current()
	assert.Equal(t, "persisted-token", snapshot.AccessToken)
	assert.Zero(t, auth.logins(), "a matching persisted session must not re-login")
	assert.Zero(t, connector.connects(), "restore must not prompt the wallet")

	require.Eventually(t, func() bool {
		return ctrl.Profile() != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRestoreReauthenticatesOnChangedAccount(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountB, testChainID)
	store := &fakeStore{snapshot: &entity.SessionSnapshot{
		WalletType:  entity.WalletTypeInjected,
		Account:     accountA,
		ChainID:     testChainID,
		AccessToken: "stale-token",
		UserID:      "user-stale",
	}}
	auth := &fakeAuthClient{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Restore(context.Background()))
	waitForAccount(t, ctrl, accountB)

	snapshot, _ := ctrl.Current()
	assert.Equal(t, "token-for-"+accountB, snapshot.AccessToken)
	assert.Equal(t, 1, auth.logins())
	assert.NotEqual(t, "stale-token", store.current().AccessToken)
}

func TestRestoreKeepsStoreWhenProviderSilent(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, "", testChainID)
	store := &fakeStore{snapshot: &entity.SessionSnapshot{
		WalletType:  entity.WalletTypeInjected,
		Account:     accountA,
		ChainID:     testChainID,
		AccessToken: "persisted-token",
	}}
	ctrl := startController(t, newFakeRegistry(connector), store, &fakeAuthClient{}, &recordingPublisher{})

	require.NoError(t, ctrl.Restore(context.Background()))
	waitForState(t, ctrl, entity.StateProviderUnavailable)

	// The provider may just be slow to start; the session survives for a
	// later restart.
	require.NotNil(t, store.current())
	assert.Equal(t, "persisted-token", store.current().AccessToken)
}

func TestRestoreWithEmptyStoreStaysIdle(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	ctrl := startController(t, newFakeRegistry(connector), &fakeStore{}, &fakeAuthClient{}, &recordingPublisher{})

	require.NoError(t, ctrl.Restore(context.Background()))
	time.Sleep(50 * time.Millisecond)

	snapshot, state := ctrl.Current()
	assert.Equal(t, entity.StateIdle, state)
	assert.Nil(t, snapshot)
}

func TestProfileFetchFailureKeepsSessionAuthenticated(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	auth := &fakeAuthClient{profileErr: domainerrors.ErrProfileFetchFailed.WrapMessage("502")}
	store := &fakeStore{}
	ctrl := startController(t, newFakeRegistry(connector), store, auth, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForState(t, ctrl, entity.StateAuthenticated)

	snapshot, _ := ctrl.Current()
	require.NotNil(t, snapshot)
	assert.Nil(t, ctrl.Profile())
	assert.Equal(t, "PROFILE_FETCH_FAILED", ctrl.LastErrorCode())
	assert.NotNil(t, store.current())
}

func TestSwitchingWalletTypeTearsDownOldSession(t *testing.T) {
	t.Parallel()

	injected := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	coinbase := newFakeConnector(entity.WalletTypeCoinbase, accountB, testChainID)
	store := &fakeStore{}
	ctrl := startController(t, newFakeRegistry(injected, coinbase), store, &fakeAuthClient{}, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeCoinbase))
	waitForAccount(t, ctrl, accountB)

	assert.GreaterOrEqual(t, injected.disconnects(), 1)
	snapshot, _ := ctrl.Current()
	assert.Equal(t, entity.WalletTypeCoinbase, snapshot.WalletType)
	assert.Equal(t, "token-for-"+accountB, store.current().AccessToken)
}

func TestCurrentReturnsACopy(t *testing.T) {
	t.Parallel()

	connector := newFakeConnector(entity.WalletTypeInjected, accountA, testChainID)
	ctrl := startController(t, newFakeRegistry(connector), &fakeStore{}, &fakeAuthClient{}, &recordingPublisher{})

	require.NoError(t, ctrl.Connect(context.Background(), entity.WalletTypeInjected))
	waitForAccount(t, ctrl, accountA)

	snapshot, _ := ctrl.Current()
	snapshot.Account = "mutated"
	snapshot.AccessToken = "mutated"

	fresh, _ := ctrl.Current()
	assert.Equal(t, accountA, fresh.Account)
	assert.Equal(t, "token-for-"+accountA, fresh.AccessToken)
}
