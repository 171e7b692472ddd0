package model

import "time"

type Role string

const (
	RoleAsistencial    Role = "asistencial"
	RoleAdministrativo Role = "administrativo"
	RoleConductor      Role = "conductor"
)

// Roles lists every role a user can register with.
var Roles = []Role{RoleAsistencial, RoleAdministrativo, RoleConductor}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	DNI       string    `json:"dni"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
