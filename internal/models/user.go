// Package models contains data models for the account service.
package models

import "time"

// User represents a registered member of the sharing platform.
type User struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	Avatar       string    `json:"avatar" gorm:"not null;default:''"`
	Phone        string    `json:"phone" gorm:"not null;default:''"`
	About        string    `json:"about" gorm:"size:500;not null;default:''"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// PublicUser is the subset of a user returned by registration.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SessionUser is the user summary returned alongside a login token.
type SessionUser struct {
	PublicUser
	Avatar string `json:"avatar"`
}

// Public returns the registration summary of the user.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

// Session returns the login summary of the user.
func (u *User) Session() *SessionUser {
	return &SessionUser{
		PublicUser: *u.Public(),
		Avatar:     u.Avatar,
	}
}
