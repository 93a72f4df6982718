package performance

import "github.com/warp/rental-engine/rental"

// CanViewEmployee allows employees to see their own figures and admins to see
// everyone's.
func CanViewEmployee(actor rental.Employee, subject rental.EmployeeID) error {
	if actor.ID == subject || actor.Role.IsAdminOrHigher() {
		return nil
	}
	return &rental.AuthorizationError{Action: "view another employee's performance", Role: actor.Role}
}

// CanViewTeam gates the team overview and the global activity feed.
func CanViewTeam(actor rental.Employee) error {
	if actor.Role.IsAdminOrHigher() {
		return nil
	}
	return &rental.AuthorizationError{Action: "view team performance", Role: actor.Role}
}

// CanManageTargets allows admins to manage targets, except a system owner's
// targets, which only a system owner may touch.
func CanManageTargets(actor, subject rental.Employee) error {
	if !actor.Role.IsAdminOrHigher() {
		return &rental.AuthorizationError{Action: "manage targets", Role: actor.Role}
	}
	if subject.Role == rental.RoleSystemOwner && actor.Role != rental.RoleSystemOwner {
		return &rental.AuthorizationError{Action: "manage a system owner's targets", Role: actor.Role}
	}
	return nil
}
