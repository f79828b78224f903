package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/engine"
)

func emp(id engine.EmployeeID, role engine.Role, rank int, mgr *engine.EmployeeID) *engine.Employee {
	return &engine.Employee{ID: id, Role: role, RoleRank: rank, ReportingManagerID: mgr, Active: true}
}

func TestCanApproveLeave_Matrix(t *testing.T) {
	mgrID := engine.EmployeeID(10)
	otherID := engine.EmployeeID(11)
	pending := &engine.LeaveRequest{Status: engine.LeavePending, ApproverID: &mgrID, LeaveType: engine.LeaveCL}

	tests := []struct {
		name  string
		actor *engine.Employee
		want  bool
	}{
		{"HR approves anything", emp(1, engine.RoleHR, 4, nil), true},
		{"MD approves anything", emp(2, engine.RoleMD, 3, nil), true},
		{"ADMIN approves anything", emp(3, engine.RoleAdmin, 1, nil), true},
		{"designated manager", emp(10, engine.RoleManager, 4, nil), true},
		{"other manager", emp(11, engine.RoleManager, 4, nil), false},
		{"VP has no leave authority", emp(4, engine.RoleVP, 2, nil), false},
		{"plain employee", emp(5, engine.RoleEmployee, 5, nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.CanApproveLeave(tt.actor, pending))
		})
	}

	// Non-pending requests are never actionable.
	approved := &engine.LeaveRequest{Status: engine.LeaveApproved, ApproverID: &mgrID}
	assert.False(t, engine.CanApproveLeave(emp(1, engine.RoleHR, 4, nil), approved))

	// A request with no designated approver is HR-only.
	orphan := &engine.LeaveRequest{Status: engine.LeavePending}
	assert.False(t, engine.CanApproveLeave(emp(otherID, engine.RoleManager, 4, nil), orphan))
	assert.True(t, engine.CanApproveLeave(emp(1, engine.RoleHR, 4, nil), orphan))
}

func TestCanCompanyCancelLeave_HROnlyCLAndPL(t *testing.T) {
	hr := emp(1, engine.RoleHR, 4, nil)
	admin := emp(2, engine.RoleAdmin, 1, nil)

	cl := &engine.LeaveRequest{Status: engine.LeaveApproved, LeaveType: engine.LeaveCL}
	pl := &engine.LeaveRequest{Status: engine.LeaveApproved, LeaveType: engine.LeavePL}
	sl := &engine.LeaveRequest{Status: engine.LeaveApproved, LeaveType: engine.LeaveSL}

	assert.True(t, engine.CanCompanyCancelLeave(hr, cl))
	assert.True(t, engine.CanCompanyCancelLeave(hr, pl))
	assert.False(t, engine.CanCompanyCancelLeave(hr, sl))
	assert.False(t, engine.CanCompanyCancelLeave(admin, cl), "company cancellation is strictly HR")
}

func TestCanApproveCompoffAndWfh_ChainScoped(t *testing.T) {
	mgrID := engine.EmployeeID(10)
	reportee := emp(20, engine.RoleEmployee, 5, &mgrID)

	directMgr := emp(10, engine.RoleManager, 4, nil)
	otherMgr := emp(11, engine.RoleManager, 4, nil)
	hr := emp(1, engine.RoleHR, 4, nil)

	assert.True(t, engine.CanApproveCompoff(directMgr, reportee))
	assert.False(t, engine.CanApproveCompoff(otherMgr, reportee))
	assert.True(t, engine.CanApproveCompoff(hr, reportee))

	assert.True(t, engine.CanApproveWfh(directMgr, reportee))
	assert.False(t, engine.CanApproveWfh(otherMgr, reportee))
	assert.True(t, engine.CanApproveWfh(hr, reportee))
}

func TestManagerCandidateRanks(t *testing.T) {
	assert.Nil(t, engine.ManagerCandidateRanks(1))
	assert.Equal(t, []int{1}, engine.ManagerCandidateRanks(2))
	assert.Equal(t, []int{1, 2}, engine.ManagerCandidateRanks(3))
	assert.Equal(t, []int{1, 2, 3}, engine.ManagerCandidateRanks(4))
	assert.Equal(t, []int{4, 1, 2, 3}, engine.ManagerCandidateRanks(5), "prefer the direct manager rank")
}

func TestValidateReportingAssignment(t *testing.T) {
	mgrID := engine.EmployeeID(10)

	// Rank 1 must not report to anyone.
	top := emp(1, engine.RoleAdmin, 1, nil)
	assert.NoError(t, engine.ValidateReportingAssignment(top, nil))
	topWithMgr := emp(1, engine.RoleAdmin, 1, &mgrID)
	assert.ErrorIs(t, engine.ValidateReportingAssignment(topWithMgr, nil), engine.ErrValidation)

	// Everyone else must report to strictly higher authority.
	worker := emp(20, engine.RoleEmployee, 5, &mgrID)
	assert.NoError(t, engine.ValidateReportingAssignment(worker, emp(10, engine.RoleManager, 4, nil)))
	assert.ErrorIs(t, engine.ValidateReportingAssignment(worker, emp(10, engine.RoleEmployee, 5, nil)), engine.ErrValidation)

	noMgr := emp(21, engine.RoleEmployee, 5, nil)
	assert.ErrorIs(t, engine.ValidateReportingAssignment(noMgr, nil), engine.ErrValidation)
}
