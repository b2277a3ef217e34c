package tokenstore

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Token is a persisted value.
type Token struct {
	// Key identifies the value, e.g. the session key for an API key.
	Key string `gorm:"column:token_key;type:varchar(255);primaryKey"`

	Value string `gorm:"type:text;not null"`

	UpdatedAt time.Time
}

// TableName specifies the table name for GORM.
func (Token) TableName() string {
	return "session_tokens"
}

// SQL is a Store backed by a database table, for sharing a session between
// hosts.
type SQL struct {
	db *gorm.DB
}

var _ Store = (*SQL)(nil)

// NewSQL returns a store using db, creating the table if needed.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&Token{}); err != nil {
		return nil, fmt.Errorf("error migrating token table: %w", err)
	}
	return &SQL{db: db}, nil
}

// DB returns the underlying connection.
func (s *SQL) DB() *gorm.DB {
	return s.db
}

// Get implements Store.
func (s *SQL) Get(key string) (string, bool, error) {
	var t Token
	err := s.db.First(&t, "token_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error reading token: %w", err)
	}
	return t.Value, true, nil
}

// Set implements Store.
func (s *SQL) Set(key, value string) error {
	t := Token{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&t).Error
	if err != nil {
		return fmt.Errorf("error writing token: %w", err)
	}
	return nil
}
