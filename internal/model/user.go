package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles assignable to a user. Permission checks happen in middleware; there
// is no role CRUD surface.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// BackupCodeList is stored as a JSON array column
type BackupCodeList = datatypes.JSONSlice[string]

type User struct {
	gorm.Model
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	Username     string    `gorm:"column:username;index"`
	Email        string    `gorm:"column:email;unique;not null"`
	Password     string    `gorm:"column:password;not null"`
	Role         string    `gorm:"column:role;default:user;not null"`
	IsActive     bool      `gorm:"column:is_active;default:true;not null"`
	IsVerified   bool      `gorm:"column:is_verified;default:false;not null"`
	LastLogin    time.Time `gorm:"column:last_login"`

	// Two-factor state. TOTPSecret set + Is2FAEnabled false means setup is
	// pending confirmation; both set means enabled.
	Is2FAEnabled bool           `gorm:"column:is_2fa_enabled;default:false;not null"`
	TOTPSecret   string         `gorm:"column:totp_secret"`
	BackupCodes  BackupCodeList `gorm:"column:backup_codes"`
}

// TwoFactorPending reports whether setup was started but never confirmed
func (u *User) TwoFactorPending() bool {
	return u.TOTPSecret != "" && !u.Is2FAEnabled
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
