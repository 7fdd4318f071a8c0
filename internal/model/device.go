package model

import (
	"time"

	"gorm.io/gorm"
)

// UserDevice records a (user agent, source IP) pair seen on a successful
// fully-verified login. Digests only; raw values never persist.
type UserDevice struct {
	gorm.Model
	UserID        uint      `gorm:"column:user_id;uniqueIndex:idx_user_devices_fingerprint;not null"`
	UserAgentHash string    `gorm:"column:user_agent_hash;size:64;uniqueIndex:idx_user_devices_fingerprint;not null"`
	IPHash        string    `gorm:"column:ip_hash;size:64;uniqueIndex:idx_user_devices_fingerprint;not null"`
	DeviceName    string    `gorm:"column:device_name;size:120"`
	LastSeen      time.Time `gorm:"column:last_seen;not null"`
}

func (UserDevice) TableName() string {
	return "user_devices"
}
