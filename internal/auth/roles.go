package auth

// Role names a caller category. Devices and operators are different
// populations, not ranks: a device may fetch and acknowledge its own
// commands, operators may issue them.
type Role string

const (
	RoleDevice     Role = "device"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleDevice, RoleSupervisor, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// CanIssueCommands reports whether the role may create commands.
func CanIssueCommands(role Role) bool {
	return role == RoleSupervisor || role == RoleAdmin
}
