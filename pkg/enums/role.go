package enums

// Role is the identity-provider role claim.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// ParseRole maps an empty claim to RoleCustomer.
func ParseRole(value string) (Role, bool) {
	if value == "" {
		return RoleCustomer, true
	}
	role := Role(value)
	return role, role.IsValid()
}
