package model

import "time"

// Roles understood by the JWT and role middlewares.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Gender values accepted for users.gender.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

// User represents an account as stored in the `users` table.  Bookings and
// cancellations reference users only weakly: deleting a user clears those
// references instead of deleting the rows.
//
// Fields:
//
//	ID           – primary key identifier.
//	FirstName    – given name.
//	LastName     – family name.
//	Email        – unique, normalised (lower case) email address.
//	PasswordHash – bcrypt hash, never serialised.
//	Role         – USER or ADMIN.
//	DateOfBirth  – calendar date of birth.
//	Gender       – optional M/F/O.
//	Phone        – contact phone number.
//	IsActive     – whether the account can log in.
type User struct {
	ID           uint64    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	Gender       *string   `json:"gender,omitempty"`
	Phone        string    `json:"phone"`
	IsActive     bool      `json:"is_active"`
	Address      *Address  `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Address is the optional postal address of a user (one per user).  It is
// owned by the user and removed together with it.
type Address struct {
	ID         uint64 `json:"id"`
	UserID     uint64 `json:"-"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is persisted.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
