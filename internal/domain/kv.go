package domain

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry is one persisted key/value pair of the conversation store. Values
// are JSON documents: the thread list, the active thread id, or the message
// list of a single thread.
type KVEntry struct {
	Key       string         `gorm:"type:varchar(255);primaryKey"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"index"`
}

// TableName implements the GORM tabler interface.
func (KVEntry) TableName() string { return "kv_entries" }
