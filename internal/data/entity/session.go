package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session is an issued login session. Only the blake2b digest of the bearer token is stored.
type Session struct {
	BaseSimple
	UserID    uuid.UUID  `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`

	// joined from users
	Email string   `db:"email"`
	Role  UserRole `db:"role"`
}
