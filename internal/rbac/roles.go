package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleOperator watches live calls and reads transcripts of its tenant.
	RoleOperator = "operator"
	// RoleAnalyst reads turn reports of its tenant.
	RoleAnalyst = "analyst"
	// RoleSuperAdmin reads every tenant.
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleOperator, RoleAnalyst, RoleSuperAdmin:
		return true
	}
	return false
}

// CanReadTenant reports whether an operator of ownTenant with role may read
// data belonging to tenantID.
func CanReadTenant(role, ownTenant, tenantID string) bool {
	if IsSuperAdmin(role) {
		return true
	}
	return ownTenant != "" && ownTenant == tenantID
}
