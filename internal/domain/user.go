package domain

import "time"

type Role string

const (
	RoleVoter Role = "voter"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleVoter || r == RoleAdmin
}

// User represents a registered account that may sign in.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	StudentID    string
	Role         Role
	IsVerified   bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicProfile is the caller-facing view of a user; it never carries the password digest.
type PublicProfile struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      Role
	StudentID string
}

func (u *User) Profile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		StudentID: u.StudentID,
	}
}
