// Package model defines the data structures shared by the repository,
// service and handler layers.
package model

import "time"

// User is a registered forum account.
//
// PasswordHash never leaves the server: the json tag hides it from every
// response. GitHubID is set only for accounts created through GitHub sign-in.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	IsAdmin      bool      `json:"isAdmin"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is what other users see of an account: no email and no real
// name.
type PublicUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt}
}
