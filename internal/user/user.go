// Package user is the reference producer of integration events: registering a
// user persists the account and stages a UserRegistered outbox row in one
// commit.
package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	CreatedAt time.Time
}

type RegisterRequest struct {
	Email    string
	FullName string
	// CorrelationID ties the registration to its trace; zero starts a new one.
	CorrelationID uuid.UUID
}
