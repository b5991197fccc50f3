package account

import "time"

// Role is derived from the role flags; an account holds at most one.
type Role string

const (
	RoleUnassigned Role = "unassigned"
	RolePatient    Role = "patient"
	RoleDoctor     Role = "doctor"
)

// Account is the domain representation of a registered identity.
// It mirrors the accounts table and carries no JSON annotations so it
// can be reused by different presentation layers.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsDoctor     bool
	IsPatient    bool
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role reports which profile role the account holds.
func (a Account) Role() Role {
	switch {
	case a.IsDoctor:
		return RoleDoctor
	case a.IsPatient:
		return RolePatient
	default:
		return RoleUnassigned
	}
}

// RegisterRequest contains registration data supplied by callers.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Name      string `json:"name" validate:"required,max=255"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the credential pair handed to a client after login or refresh.
type TokenPair struct {
	Access  string
	Refresh string
}
