package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleDriver   Role = "driver"
	RoleMechanic Role = "mechanic"
	RoleAdmin    Role = "admin"
)

// User represents a signed-up dashboard user
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	FullName     string             `bson:"full_name" json:"full_name"`
	Phone        string             `bson:"phone" json:"phone"`
	VehicleReg   string             `bson:"vehicle_reg,omitempty" json:"vehicle_reg,omitempty"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request with profile metadata
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	VehicleReg string `json:"vehicle_reg"`
	Role       Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleDriver, RoleMechanic, RoleAdmin:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleDriver:
		return action == "view_bookings" || action == "respond_booking" ||
			action == "send_message" || action == "view_loads" ||
			action == "request_load" || action == "raise_emergency"
	case RoleMechanic:
		return action == "view_emergencies" || action == "update_emergency" ||
			action == "send_message" || action == "diagnose"
	default:
		return false
	}
}
