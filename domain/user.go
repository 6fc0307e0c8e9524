package domain

import "time"

// User is a logical identity. Guests are provisioned transiently by the
// identity provider; a user may hold many simultaneous connections.
type User struct {
	ID        string
	IsGuest   bool
	CreatedAt time.Time
}

func NewGuest(id string) User {
	return User{
		ID:        id,
		IsGuest:   true,
		CreatedAt: time.Now().UTC(),
	}
}
