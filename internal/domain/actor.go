package domain

// Role is the marketplace role carried by an authenticated session.
type Role string

const (
	RoleShipper    Role = "SHIPPER"
	RoleCarrier    Role = "CARRIER"
	RoleDispatcher Role = "DISPATCHER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

// Actor is the authenticated identity behind a request.
type Actor struct {
	UserID string
	Role   Role
	OrgID  string
}

// IsPrivileged reports whether the actor bypasses org ownership checks.
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}
