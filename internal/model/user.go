package model

import (
	"strings"
	"time"
)

type User struct {
	ID            string     `db:"id" json:"id"`
	Email         *string    `db:"email" json:"email,omitempty"`
	PasswordHash  *string    `db:"password_hash" json:"-"`
	AuthTokenHash *string    `db:"auth_token_hash" json:"-"`
	Role          UserRole   `db:"role" json:"role"`
	FirstName     string     `db:"first_name" json:"firstName"`
	LastName      string     `db:"last_name" json:"lastName"`
	PhoneNumber   *string    `db:"phone_number" json:"phoneNumber,omitempty"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Gender        *string    `db:"gender" json:"gender,omitempty"`
	IsActive      bool       `db:"is_active" json:"isActive"`
	EmailVerified bool       `db:"email_verified" json:"emailVerified"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Email != nil {
		return *u.Email
	}
	return name
}

// HasCredentials reports whether this user can log in. Placeholder
// identities created by a therapist have neither email nor password.
func (u *User) HasCredentials() bool {
	return u.Email != nil && *u.Email != "" && u.PasswordHash != nil
}

type CreateUserParams struct {
	Email         *string
	PasswordHash  *string
	AuthTokenHash *string
	Role          UserRole
	FirstName     string
	LastName      string
	PhoneNumber   *string
	DateOfBirth   *time.Time
	Gender        *string
}

// MergeUserFields carries scalar identity fields present on the placeholder
// user onto dst wherever dst's value is empty. Populated fields on dst are
// never overwritten.
type MergeUserFields struct {
	DateOfBirth *time.Time
	Gender      *string
	FirstName   *string
	LastName    *string
}
