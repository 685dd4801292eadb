package entity

import "time"

// Role is the role a user holds within their company.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleManager:  true,
	RoleEmployee: true,
}

// IsValid returns true if the role is a known role.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// User represents an employee within a company. ManagerID is nil for users
// at the top of the reporting chain.
type User struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	CompanyID  int64      `json:"company_id"`
	ManagerID  *int64     `json:"manager_id,omitempty"`
	Department string     `json:"department,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastLogin  *time.Time `json:"last_login_at,omitempty"`
}
