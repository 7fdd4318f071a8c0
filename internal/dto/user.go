package dto

import (
	"time"

	"github.com/karmasystem/auth-service/internal/model"
)

type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"omitempty,max=64"`
	LastName  string `json:"last_name" binding:"omitempty,max=64"`
	Username  string `json:"username" binding:"omitempty,min=3,max=64"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=100,password_strength"`
}

type UpdateProfileRequest struct {
	FirstName string `json:"first_name" binding:"omitempty,max=64"`
	LastName  string `json:"last_name" binding:"omitempty,max=64"`
	Username  string `json:"username" binding:"omitempty,min=3,max=64"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100,password_strength"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

type UserResponse struct {
	ID           uint      `json:"id"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	Is2FAEnabled bool      `json:"is_2fa_enabled"`
	LastLogin    time.Time `json:"last_login"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type DeviceResponse struct {
	ID         uint      `json:"id"`
	DeviceName string    `json:"device_name,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// NewUserResponse strips credentials and internal state from a user record
func NewUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		IsActive:     user.IsActive,
		Is2FAEnabled: user.Is2FAEnabled,
		LastLogin:    user.LastLogin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

// NewUserResponseList maps a page of users
func NewUserResponseList(users []model.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

func NewDeviceResponse(device *model.UserDevice) DeviceResponse {
	return DeviceResponse{
		ID:         device.ID,
		DeviceName: device.DeviceName,
		FirstSeen:  device.CreatedAt,
		LastSeen:   device.LastSeen,
	}
}

func NewDeviceResponseList(devices []model.UserDevice) []DeviceResponse {
	out := make([]DeviceResponse, 0, len(devices))
	for i := range devices {
		out = append(out, NewDeviceResponse(&devices[i]))
	}
	return out
}
