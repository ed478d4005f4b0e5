package domain

import "time"

// Role is the access level carried by every user.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// CanBeAssigned reports whether tickets may be assigned to a user with this role.
func (r Role) CanBeAssigned() bool {
	return r == RoleStaff || r == RoleAdmin
}

// User is an account that files or handles complaints.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	Department     *string
	Identification *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserWithCounts is the admin listing view of a user.
type UserWithCounts struct {
	User
	AuthoredTickets int
	AssignedTickets int
}
