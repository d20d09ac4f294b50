package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a read-only mirror of the identity service's user record.
// The only field this service owns is the balance, and that lives in
// the Balance model.
type User struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Username  string
}
