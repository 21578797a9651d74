package impl

import (
	"context"
	"sync"

	"walletd/internal/domain/entity"
	domainerrors "walletd/internal/domain/errors"
	"walletd/internal/domain/service"
)

// fakeConnector is a scriptable in-memory connector.
type fakeConnector struct {
	walletType entity.WalletType

	mu          sync.Mutex
	account     string
	chainID     int64
	connectErr  error
	accountErr  error
	chainErr    error
	switchErr   error
	connectGate chan struct{} // when set, Connect blocks until closed

	connectCalls    int
	accountCalls    int
	switchCalls     int
	disconnectCalls int

	subs []func(service.ChangeEvent)
}

func newFakeConnector(walletType entity.WalletType, account string, chainID int64) *fakeConnector {
	return &fakeConnector{walletType: walletType, account: account, chainID: chainID}
}

func (f *fakeConnector) Type() entity.WalletType { return f.walletType }

func (f *fakeConnector) Connect(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.connectCalls++
	gate := f.connectGate
	err := f.connectErr
	account := f.account
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}

	return account, nil
}

func (f *fakeConnector) Disconnect() {
	f.mu.Lock()
	f.disconnectCalls++
	f.mu.Unlock()
}

func (f *fakeConnector) CurrentAccount(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountCalls++

	return f.account, f.accountErr
}

func (f *fakeConnector) CurrentChainID(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.chainID, f.chainErr
}

func (f *fakeConnector) SwitchChain(ctx context.Context, chainID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchCalls++
	if f.switchErr != nil {
		return f.switchErr
	}
	f.chainID = chainID

	return nil
}

func (f *fakeConnector) OnChange(cb func(service.ChangeEvent)) service.Unsubscribe {
	f.mu.Lock()
	f.subs = append(f.subs, cb)
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		f.subs = nil
		f.mu.Unlock()
	}
}

func (f *fakeConnector) setAccount(account string) {
	f.mu.Lock()
	f.account = account
	f.mu.Unlock()
}

func (f *fakeConnector) setChainID(chainID int64) {
	f.mu.Lock()
	f.chainID = chainID
	f.mu.Unlock()
}

func (f *fakeConnector) fireChange(ev service.ChangeEvent) {
	f.mu.Lock()
	subs := append([]func(service.ChangeEvent){}, f.subs...)
	f.mu.Unlock()

	for _, cb := range subs {
		cb(ev)
	}
}

func (f *fakeConnector) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connectCalls
}

func (f *fakeConnector) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.accountCalls
}

func (f *fakeConnector) switches() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.switchCalls
}

func (f *fakeConnector) disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.disconnectCalls
}

func (f *fakeConnector) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.subs)
}

type fakeRegistry struct {
	connectors map[entity.WalletType]service.Connector
}

func newFakeRegistry(connectors ...service.Connector) *fakeRegistry {
	byType := make(map[entity.WalletType]service.Connector, len(connectors))
	for _, c := range connectors {
		byType[c.Type()] = c
	}

	return &fakeRegistry{connectors: byType}
}

func (r *fakeRegistry) Resolve(walletType entity.WalletType) (service.Connector, error) {
	connector, ok := r.connectors[walletType]
	if !ok {
		return nil, domainerrors.ErrUnknownWalletType.WrapMessage(walletType.String())
	}

	return connector, nil
}

// fakeStore records the order of store operations alongside the content.
type fakeStore struct {
	mu       sync.Mutex
	snapshot *entity.SessionSnapshot
	ops      []string
	loadErr  error
	saveErr  error
}

func (s *fakeStore) Load(ctx context.Context) (*entity.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "load")

	return s.snapshot.Clone(), s.loadErr
}

func (s *fakeStore) Save(ctx context.Context, snapshot *entity.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "save")
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = snapshot.Clone()

	return nil
}

func (s *fakeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "clear")
	s.snapshot = nil

	return nil
}

func (s *fakeStore) current() *entity.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot.Clone()
}

func (s *fakeStore) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string{}, s.ops...)
}

func (s *fakeStore) saveCount() int {
	return s.countOp("save")
}

func (s *fakeStore) clearCount() int {
	return s.countOp("clear")
}

func (s *fakeStore) countOp(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, recorded := range s.ops {
		if recorded == op {
			count++
		}
	}

	return count
}

// fakeDeriver derives deterministic credentials without real key material.
type fakeDeriver struct{}

func (fakeDeriver) Derive(account string) (service.Credentials, error) {
	return service.Credentials{Username: account, Password: "derived:" + account}, nil
}

// fakeAuthClient scripts login and profile responses per account.
type fakeAuthClient struct {
	mu         sync.Mutex
	loginErr   error
	profile    *entity.UserProfile
	profileErr error

	// When loginGate is set, logins for gateUser (all logins when gateUser
	// is empty) block until the gate is closed.
	loginGate chan struct{}
	gateUser  string

	loginCalls   int
	loginNames   []string
	profileCalls int
}

func (a *fakeAuthClient) Login(ctx context.Context, creds service.Credentials) (*service.LoginResult, error) {
	a.mu.Lock()
	a.loginCalls++
	a.loginNames = append(a.loginNames, creds.Username)
	err := a.loginErr
	var gate chan struct{}
	if a.loginGate != nil && (a.gateUser == "" || a.gateUser == creds.Username) {
		gate = a.loginGate
	}
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	return &service.LoginResult{
		AccessToken: "token-for-" + creds.Username,
		UserID:      "user-" + creds.Username,
	}, nil
}

func (a *fakeAuthClient) FetchProfile(ctx context.Context, accessToken, userID string) (*entity.UserProfile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profileCalls++
	if a.profileErr != nil {
		return nil, a.profileErr
	}
	if a.profile != nil {
		return a.profile, nil
	}

	return &entity.UserProfile{ID: userID, Username: "someone"}, nil
}

func (a *fakeAuthClient) logins() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.loginCalls
}

// recordingPublisher collects every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*service.SessionEvent
}

func (p *recordingPublisher) PublishSessionChanged(ctx context.Context, event *service.SessionEvent) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()

	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) states() []entity.SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := make([]entity.SessionState, 0, len(p.events))
	for _, ev := range p.events {
		states = append(states, ev.State)
	}

	return states
}
