package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/shopping-assistant/internal/domain"
)

// SQLiteKV persists values as rows of the kv_entries table.
type SQLiteKV struct {
	db *gorm.DB
}

// NewSQLiteKV wraps a migrated database handle.
func NewSQLiteKV(db *gorm.DB) *SQLiteKV { return &SQLiteKV{db: db} }

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var e domain.KVEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(e.Value), nil
}

// Set upserts the value for key.
func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("kv: empty key")
	}
	e := domain.KVEntry{Key: key, Value: datatypes.JSON(value), UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&domain.KVEntry{}).Error
}
