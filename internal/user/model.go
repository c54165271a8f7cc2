// Package user stores account records and serves the paginated user listing.
package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Table is the backing table name.
const Table = "users"

// Columns is the projection used by every user read, in scan order.
var Columns = []string{"id", "email", "password", "created_at", "updated_at"}

// User is one account row. The password hash never leaves the process.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func (u User) VerifyPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// Message is the writable part of a user, as accepted on create and update.
type Message struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Params are the list options accepted by FindAll. Nil fields are not applied.
type Params struct {
	Page         *int64
	PageSize     *int64
	SortBy       string
	Email        *string
	CreatedAtGTE *time.Time
	CreatedAtLTE *time.Time
	UpdatedAtGTE *time.Time
	UpdatedAtLTE *time.Time
}
