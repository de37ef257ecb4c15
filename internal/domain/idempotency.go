package domain

import "time"

// Idempotency maps a submission's Idempotency-Key to the model message it
// produced. The key is scoped to the user and the thread the message was
// sent to.
type Idempotency struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"not null;uniqueIndex:ux_idem_scope,priority:1"`
	ThreadID  string    `gorm:"not null;uniqueIndex:ux_idem_scope,priority:2"`
	Key       string    `gorm:"not null;size:200;uniqueIndex:ux_idem_scope,priority:3"`
	MessageID string    `gorm:"not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Live reports whether the record may still be replayed at now.
func (r Idempotency) Live(now time.Time) bool { return now.Before(r.ExpiresAt) }
