package domain

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned by repositories when no user matches the query.
var ErrUserNotFound = errors.New("user not found")

// UserStatus defines the possible statuses of a user account.
type UserStatus string

const (
	UserStatusActive UserStatus = "ACTIVE"
	UserStatusLocked UserStatus = "LOCKED"
)

// User represents a registered account.
type User struct {
	ID           string     `bson:"_id,omitempty"  json:"id"`
	Email        string     `bson:"email"          json:"email"`
	PasswordHash string     `bson:"password_hash"  json:"-"`
	FirstName    string     `bson:"first_name,omitempty"    json:"first_name"`
	LastName     string     `bson:"last_name,omitempty"     json:"last_name"`
	PhoneNumber  string     `bson:"phone_number,omitempty"  json:"phone_number"`
	ProfileImage string     `bson:"profile_image,omitempty" json:"profile_image"`
	Status       UserStatus `bson:"status"         json:"status"`
	CreatedAt    time.Time  `bson:"created_at"     json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"     json:"updated_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

// UserRepository is the credential repository consumed by the auth services.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
}
