package postgres

import (
	"context"
	"log/slog"
	"sync"

	"walletd/internal/domain/entity"
	"walletd/internal/domain/repository"
	"walletd/internal/errors"
	"walletd/internal/infra/persistence/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sessionStore keeps the single snapshot row in Postgres. Calls are
// serialized through one mutex so saves and clears never interleave.
type sessionStore struct {
	db     *gorm.DB
	logger *slog.Logger

	mu sync.Mutex
}

// NewSessionStore is the constructor for the Postgres-backed session store.
// It owns the schema of its single table.
func NewSessionStore(db *gorm.DB, logger *slog.Logger) (repository.SessionStore, error) {
	if err := db.AutoMigrate(&model.SessionModel{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate session table")
	}

	return &sessionStore{db: db, logger: logger}, nil
}

// Load reads the snapshot row. A missing or undecodable row means no session.
func (s *sessionStore) Load(ctx context.Context) (*entity.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row model.SessionModel
	err := s.db.WithContext(ctx).First(&row, "id = ?", model.CurrentSessionID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Failed to read session row, treating as empty", "error", err)
		}

		return nil, nil
	}

	if row.Account == "" || row.AccessToken == "" {
		return nil, nil
	}

	return row.ToEntity(), nil
}

// Save upserts the snapshot row in one statement.
func (s *sessionStore) Save(ctx context.Context, snapshot *entity.SessionSnapshot) error {
	if snapshot == nil {
		return errors.New("cannot save a nil snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := model.FromEntity(snapshot)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(row).Error

	return errors.Wrap(err, "failed to save session row")
}

// Clear deletes the snapshot row; deleting a missing row is a no-op.
func (s *sessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).
		Delete(&model.SessionModel{}, "id = ?", model.CurrentSessionID).Error

	return errors.Wrap(err, "failed to clear session row")
}
