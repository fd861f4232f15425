package model

import "time"

// PlaceholderName is stored for users created on first contact.
const PlaceholderName = "New User"

type User struct {
	ID        string    `db:"id" json:"id"`
	Phone     string    `db:"phone" json:"phone"`
	FullName  string    `db:"full_name" json:"fullName"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// DisplayName returns the name to greet the user with, or "" when only the
// placeholder is known.
func (u *User) DisplayName() string {
	if u == nil || u.FullName == "" || u.FullName == PlaceholderName {
		return ""
	}
	return u.FullName
}

type CreateUserParams struct {
	Phone    string
	FullName string
}
