package entity

import "github.com/google/uuid"

type FarmStatus string

const (
	FarmStatusDraft     FarmStatus = "draft"
	FarmStatusPending   FarmStatus = "pending"
	FarmStatusApproved  FarmStatus = "approved"
	FarmStatusRejected  FarmStatus = "rejected"
	FarmStatusSuspended FarmStatus = "suspended"
)

type Farm struct {
	Base
	OwnerID  uuid.UUID  `db:"owner_id"`
	Name     string     `db:"name"`
	Status   FarmStatus `db:"status"`
	IsActive bool       `db:"is_active"`
}

// Bookable reports whether tourists may book the farm's activities.
func (f *Farm) Bookable() bool {
	return f.Status == FarmStatusApproved && f.IsActive
}
