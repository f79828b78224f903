/*
authority.go - Approval authority resolution

PURPOSE:
  A single place answering "who may approve what". Pure functions over
  the actor's role/id and the target record; no side effects, no
  storage. The request services call these before any write, and the
  same logic governs reporting-manager selection.

AUTHORITY MATRIX:
  Leave:    MD, ADMIN, HR approve any pending request; a MANAGER only
            the requests naming them as designated approver.
  Comp-off: HR/ADMIN approve any; a manager only direct reportees.
  WFH:      HR/ADMIN approve any; otherwise only the employee's direct
            reporting manager.

MANAGER CANDIDATE RANKS (rank 1 = highest authority):
  rank 2 <- only rank 1
  rank 3 <- ranks 1-2
  rank 4 <- ranks 1-3
  rank 5 <- prefer rank 4, fallback ranks 1-3
*/
package engine

// CanApproveLeave reports whether actor may approve or reject the leave
// request. Only PENDING requests are actionable.
func CanApproveLeave(actor *Employee, req *LeaveRequest) bool {
	if actor == nil || req == nil || req.Status != LeavePending {
		return false
	}
	switch actor.Role {
	case RoleMD, RoleAdmin, RoleHR:
		return true
	case RoleManager:
		return req.ApproverID != nil && *req.ApproverID == actor.ID
	}
	return false
}

// CanCompanyCancelLeave reports whether actor may company-cancel an
// approved request. HR only; CL and PL only.
func CanCompanyCancelLeave(actor *Employee, req *LeaveRequest) bool {
	if actor == nil || req == nil {
		return false
	}
	if actor.Role != RoleHR {
		return false
	}
	return req.LeaveType == LeaveCL || req.LeaveType == LeavePL
}

// CanApproveCompoff reports whether actor may act on a comp-off request
// raised by employee.
func CanApproveCompoff(actor, employee *Employee) bool {
	if actor == nil || employee == nil {
		return false
	}
	switch actor.Role {
	case RoleHR, RoleAdmin:
		return true
	case RoleManager:
		return employee.ReportingManagerID != nil && *employee.ReportingManagerID == actor.ID
	}
	return false
}

// CanApproveWfh reports whether actor may act on a WFH request raised by
// employee: HR/ADMIN, or the employee's direct reporting manager.
func CanApproveWfh(actor, employee *Employee) bool {
	if actor == nil || employee == nil {
		return false
	}
	if actor.Role == RoleHR || actor.Role == RoleAdmin {
		return true
	}
	return employee.ReportingManagerID != nil && *employee.ReportingManagerID == actor.ID
}

// ManagerCandidateRanks returns the role ranks that may be selected as
// reporting manager for an employee of targetRank, in preference order.
func ManagerCandidateRanks(targetRank int) []int {
	switch {
	case targetRank <= 1:
		return nil // top of the hierarchy reports to nobody
	case targetRank == 2:
		return []int{1}
	case targetRank == 3:
		return []int{1, 2}
	case targetRank == 4:
		return []int{1, 2, 3}
	default:
		return []int{4, 1, 2, 3} // prefer direct managers, fall back upward
	}
}

// ValidateReportingAssignment checks the hierarchy invariants for an
// employee record: rank-1 employees have no manager, everyone else
// reports to someone of strictly higher authority.
func ValidateReportingAssignment(emp *Employee, manager *Employee) error {
	if emp.RoleRank == 1 {
		if emp.ReportingManagerID != nil {
			return &ValidationError{Field: "reporting_manager_id", Message: "rank-1 roles must not have a reporting manager"}
		}
		return nil
	}
	if emp.ReportingManagerID == nil {
		return &ValidationError{Field: "reporting_manager_id", Message: "required for this role"}
	}
	if manager == nil {
		return &NotFoundError{Kind: "employee", ID: *emp.ReportingManagerID}
	}
	if manager.RoleRank >= emp.RoleRank {
		return &ValidationError{Field: "reporting_manager_id", Message: "manager must hold higher authority than the employee"}
	}
	for _, rank := range ManagerCandidateRanks(emp.RoleRank) {
		if manager.RoleRank == rank {
			return nil
		}
	}
	return &ValidationError{Field: "reporting_manager_id", Message: "role rank not permitted as manager for this employee"}
}
