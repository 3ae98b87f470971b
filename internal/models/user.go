package models

import "time"

// Role tags carried in staff JWTs and checked at the engine boundary.
const (
	RoleAdmin       = "admin"
	RoleAccountant  = "accountant"
	RoleLoanOfficer = "loan_officer"
)

type User struct {
	ID                  int    `json:"id" example:"1"`
	Email               string `json:"email" example:"staff@microvest.example"`
	FirstName           string `json:"FirstName" example:"Jane"`
	LastName            string `json:"LastName" example:"Doe"`
	PhoneNumber         string `json:"PhoneNumber" example:"+254712345678"`
	Role                string `json:"role" example:"loan_officer"`
	FailedLoginAttempts int    `json:"-"`
	LockedUntil         *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
