package model

// Role is the access level of an account
type Role string

const (
	RoleUploader   Role = "uploader"
	RoleAccountant Role = "accountant"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUploader, RoleAccountant, RoleAdmin:
		return true
	}
	return false
}

// User is the signed-in identity
type User struct {
	ID         string `json:"id" msgpack:"id"`
	Email      string `json:"email" msgpack:"email"`
	Name       string `json:"name" msgpack:"name"`
	Role       Role   `json:"role" msgpack:"role"`
	Department string `json:"department,omitempty" msgpack:"department,omitempty"`
}
