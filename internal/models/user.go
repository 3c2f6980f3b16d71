package models

// Sheet headers of the user credential table.
const (
	ColUsername     = "Usuario"
	ColPasswordHash = "Contraseña"
	ColRole         = "Rol"
)

// User is a row of the credential table. Role is opaque and only consulted
// by the edit policy.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Row          int    `json:"-"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (u User) Info() UserInfo {
	return UserInfo{Username: u.Username, Role: u.Role}
}
