package entity

import "github.com/google/uuid"

type UserRole string

const (
	RoleTourist UserRole = "tourist"
	RoleFarmer  UserRole = "farmer"
	RoleAdmin   UserRole = "admin"
)

type Capability string

const (
	CapBook              Capability = "booking:create"
	CapManageFarmBooking Capability = "farm:manage_bookings"
	CapViewAnyBooking    Capability = "booking:view_any"
)

var roleCapabilities = map[UserRole][]Capability{
	RoleTourist: {CapBook},
	RoleFarmer:  {CapBook, CapManageFarmBooking},
	RoleAdmin:   {CapBook, CapManageFarmBooking, CapViewAnyBooking},
}

// Caller is the authenticated principal an operation runs on behalf of.
type Caller struct {
	UserID       uuid.UUID
	Email        string
	Role         UserRole
	Capabilities map[Capability]bool
}

func NewCaller(userID uuid.UUID, email string, role UserRole) Caller {
	caps := make(map[Capability]bool)
	for _, c := range roleCapabilities[role] {
		caps[c] = true
	}
	return Caller{UserID: userID, Email: email, Role: role, Capabilities: caps}
}

func (c Caller) Can(capability Capability) bool {
	return c.Capabilities[capability]
}
