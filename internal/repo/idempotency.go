package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/shopping-assistant/internal/domain"
)

// ErrDuplicate indicates that a live idempotency record already exists for
// the (user, thread, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns the live record for (userID, threadID, key) or
// ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, threadID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(threadID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ? AND key = ?", userID, threadID, key).
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	case !rec.Live(now):
		return nil, ErrNotFound
	}
	return &rec, nil
}

// CreateIdempotency stores the message a submission produced. An expired
// record for the same tuple is overwritten; a live one yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, threadID, key, messageID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		ThreadID:  threadID,
		Key:       key,
		MessageID: messageID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "thread_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_id", "status", "created_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: rec.TableName(), Name: "expires_at"}, Value: now},
		}},
	}).Create(rec)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records whose expiry is not after now and
// reports how many rows were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
