package domain

import "time"

// Admin is an account in the credential store.
type Admin struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminPatch lists the columns an update may change. Nil fields are left untouched.
type AdminPatch struct {
	Email        *string
	PasswordHash *string
}

func (p AdminPatch) Empty() bool {
	return p.Email == nil && p.PasswordHash == nil
}
