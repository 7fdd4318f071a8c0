package model

import "time"

// UserLoginAttempt is an append-only audit record of authentication
// attempts. It drives lockout and the distinct-IP suspicious-activity
// signal; rows are pruned by age, never updated.
type UserLoginAttempt struct {
	ID          uint      `gorm:"primarykey"`
	UserID      uint      `gorm:"column:user_id;index:idx_login_attempts_user_time;not null"`
	IPAddress   string    `gorm:"column:ip_address;size:45;not null"` // IPv6 max length
	UserAgent   string    `gorm:"column:user_agent;size:500"`
	Success     bool      `gorm:"column:success;default:false;not null"`
	AttemptTime time.Time `gorm:"column:attempt_time;index:idx_login_attempts_user_time;not null"`
}

func (UserLoginAttempt) TableName() string {
	return "user_login_attempts"
}
