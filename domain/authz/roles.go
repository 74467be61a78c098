package authz

// roleAllows is the static role/action matrix. platform_owner is handled
// before the matrix is consulted, so it never appears here.
func roleAllows(role string, action Action) bool {
	switch role {
	case RoleOrgOwner:
		return true
	case RoleOrgUser:
		switch action {
		case ActionRead, ActionCreate, ActionUpdate:
			return true
		}
		return false
	case RoleExternalActor:
		return action == ActionRead
	}
	return false
}

// assignmentAllows covers explicit per-resource grants, which carry no role.
// An active assignment lets the actor read and update the assigned resource,
// nothing more.
func assignmentAllows(action Action) bool {
	return action == ActionRead || action == ActionUpdate
}
