package model

import (
	"time"
)

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleProvider UserRole = "provider"
	UserRoleAdmin    UserRole = "admin"
)

// User is a customer, provider, or admin account. Providers carry the
// aggregate earnings/bookings counters updated at payment capture.
type User struct {
	Base
	Name          string     `db:"name" json:"name"`
	Email         string     `db:"email" json:"email"`
	Phone         string     `db:"phone" json:"phone"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Role          UserRole   `db:"role" json:"role"`
	Active        bool       `db:"active" json:"active"`
	TotalEarnings int64      `db:"total_earnings" json:"total_earnings"`
	TotalBookings int        `db:"total_bookings" json:"total_bookings"`
	LastLoginAt   *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

type RegisterRequest struct {
	Name     string   `json:"name" binding:"required,max=100"`
	Email    string   `json:"email" binding:"required,email"`
	Phone    string   `json:"phone" binding:"required,min=10,max=15"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     UserRole `json:"role" binding:"omitempty,oneof=customer provider"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=100"`
	Phone *string `json:"phone" binding:"omitempty,min=10,max=15"`
}
