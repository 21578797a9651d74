// Package model contains the persistence representations of domain entities.
package model

import (
	"time"

	"walletd/internal/domain/entity"
)

// SessionModel is the relational shape of the session snapshot. The table
// holds at most one row; the fixed primary key makes every save an upsert of
// the same record.
type SessionModel struct {
	ID          int16     `gorm:"primaryKey;column:id"`
	WalletType  string    `gorm:"column:wallet_type;not null"`
	Account     string    `gorm:"column:account;not null"`
	ChainID     int64     `gorm:"column:chain_id;not null"`
	AccessToken string    `gorm:"column:access_token;not null"`
	UserID      string    `gorm:"column:user_id;not null"`
	IssuedAt    time.Time `gorm:"column:issued_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName overrides the GORM default.
func (SessionModel) TableName() string {
	return "session_snapshots"
}

// CurrentSessionID is the fixed primary key of the single snapshot row.
const CurrentSessionID int16 = 1

// FromEntity converts a domain snapshot to its persistence model.
func FromEntity(snapshot *entity.SessionSnapshot) *SessionModel {
	return &SessionModel{
		ID:          CurrentSessionID,
		WalletType:  snapshot.WalletType.String(),
		Account:     snapshot.Account,
		ChainID:     snapshot.ChainID,
		AccessToken: snapshot.AccessToken,
		UserID:      snapshot.UserID,
		IssuedAt:    snapshot.IssuedAt,
	}
}

// ToEntity converts a persistence model back to the domain snapshot.
func (m *SessionModel) ToEntity() *entity.SessionSnapshot {
	return &entity.SessionSnapshot{
		WalletType:  entity.WalletType(m.WalletType),
		Account:     m.Account,
		ChainID:     m.ChainID,
		AccessToken: m.AccessToken,
		UserID:      m.UserID,
		IssuedAt:    m.IssuedAt,
	}
}
