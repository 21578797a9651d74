// Package file implements the default session store: one JSON snapshot file.
package file

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"walletd/internal/domain/entity"
	"walletd/internal/domain/repository"

	"github.com/pkg/errors"
)

// persistedSession is the on-disk shape. It exists because the entity
// deliberately excludes the access token from JSON; durable storage is the
// one place the token is allowed to be written.
type persistedSession struct {
	WalletType  string    `json:"walletType"`
	Account     string    `json:"account"`
	ChainID     int64     `json:"chainId"`
	AccessToken string    `json:"accessToken"`
	UserID      string    `json:"userId"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// sessionStore persists the snapshot as a single JSON file. Writes go through
// a temp file in the same directory followed by a rename, so concurrent
// readers observe either the full old snapshot or the full new one.
type sessionStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewSessionStore is the constructor for the file-backed session store.
func NewSessionStore(path string, logger *slog.Logger) repository.SessionStore {
	return &sessionStore{path: path, logger: logger}
}

// Load reads the persisted snapshot. Missing or unparsable files are treated
// as "no session"; startup never fails on a corrupt store.
func (s *sessionStore) Load(_ context.Context) (*entity.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read session file, treating as empty", "error", err)
		}

		return nil, nil
	}

	var persisted persistedSession
	if err := json.Unmarshal(raw, &persisted); err != nil {
		s.logger.Warn("Session file is corrupt, treating as empty", "path", s.path)

		return nil, nil
	}

	if persisted.Account == "" || persisted.AccessToken == "" {
		return nil, nil
	}

	return &entity.SessionSnapshot{
		WalletType:  entity.WalletType(persisted.WalletType),
		Account:     persisted.Account,
		ChainID:     persisted.ChainID,
		AccessToken: persisted.AccessToken,
		UserID:      persisted.UserID,
		IssuedAt:    persisted.IssuedAt,
	}, nil
}

// Save atomically overwrites the snapshot file.
func (s *sessionStore) Save(_ context.Context, snapshot *entity.SessionSnapshot) error {
	if snapshot == nil {
		return errors.New("cannot save a nil snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(persistedSession{
		WalletType:  snapshot.WalletType.String(),
		Account:     snapshot.Account,
		ChainID:     snapshot.ChainID,
		AccessToken: snapshot.AccessToken,
		UserID:      snapshot.UserID,
		IssuedAt:    snapshot.IssuedAt,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "failed to create session directory")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp session file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return errors.Wrap(err, "failed to write session file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return errors.Wrap(err, "failed to chmod session file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return errors.Wrap(err, "failed to close session file")
	}

	return errors.Wrap(os.Rename(tmpPath, s.path), "failed to replace session file")
}

// Clear removes the snapshot file. Clearing an empty store is a no-op.
func (s *sessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove session file")
	}

	return nil
}
