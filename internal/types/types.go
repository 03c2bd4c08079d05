// README: Shared value types used across modules.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random identifier for orders, refunds and postings.
func NewID() ID {
	return ID(uuid.NewString())
}

type Point struct {
	Lat float64
	Lng float64
}

// Role identifies which kind of actor is driving a state change.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStore    Role = "store"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor is the authenticated party behind a command.
type Actor struct {
	Role Role
	ID   ID
}
