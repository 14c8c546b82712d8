package types

import "time"

// CacheEntry is one slot of the on-device cache: a single serialized blob
// per (user, logical key), last-write-wins. Keys in use: "cached_profile"
// and "last_sync_timestamp".
type CacheEntry struct {
	UserID    string    `gorm:"primaryKey;column:user_id" json:"user_id"`
	Key       string    `gorm:"primaryKey;column:key" json:"key"`
	Value     []byte    `gorm:"column:value" json:"value"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

func (CacheEntry) TableName() string { return "cache_entry" }
