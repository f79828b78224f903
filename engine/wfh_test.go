package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/engine"
)

func TestWfhSubmit_RoleGate(t *testing.T) {
	// GIVEN: The EMPLOYEE role has WFH disabled, MANAGER has it enabled
	// WHEN: Each submits a request
	// THEN: The employee is blocked by policy, the manager goes pending

	f := newFixture(t)
	ctx := context.Background()
	date := engine.NewDate(2025, time.June, 18)

	_, err := f.wfh.Submit(ctx, f.emp.ID, date, "focus day")
	assert.ErrorIs(t, err, engine.ErrPolicyViolation)

	req, err := f.wfh.Submit(ctx, f.mgr.ID, date, "focus day")
	require.NoError(t, err)
	assert.Equal(t, engine.WfhPending, req.Status)
}

func TestWfhSubmit_OneRequestPerDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := engine.NewDate(2025, time.June, 18)

	_, err := f.wfh.Submit(ctx, f.mgr.ID, date, "")
	require.NoError(t, err)

	_, err = f.wfh.Submit(ctx, f.mgr.ID, date, "")
	assert.ErrorIs(t, err, engine.ErrValidation)

	// A different date in the same month is fine.
	_, err = f.wfh.Submit(ctx, f.mgr.ID, engine.NewDate(2025, time.June, 19), "")
	assert.NoError(t, err)
}

func TestWfhSubmit_CancelledDateReusable(t *testing.T) {
	// GIVEN: A cancelled request for June 18
	// WHEN: Submitting the same date again
	// THEN: Accepted, only open or approved requests block the date

	f := newFixture(t)
	ctx := context.Background()
	date := engine.NewDate(2025, time.June, 18)

	req, err := f.wfh.Submit(ctx, f.mgr.ID, date, "")
	require.NoError(t, err)
	_, err = f.wfh.Cancel(ctx, req.ID, f.mgr.ID)
	require.NoError(t, err)

	_, err = f.wfh.Submit(ctx, f.mgr.ID, date, "")
	assert.NoError(t, err)
}

func TestWfhApprove_DirectManagerOrHR(t *testing.T) {
	// GIVEN: A pending request from mgr (reports to hr)
	// WHEN: Different actors act on it
	// THEN: Only the direct manager or HR/ADMIN succeed

	f := newFixture(t)
	ctx := context.Background()
	req, err := f.wfh.Submit(ctx, f.mgr.ID, engine.NewDate(2025, time.June, 18), "")
	require.NoError(t, err)

	// emp is below mgr in the chain and cannot act.
	_, err = f.wfh.Approve(ctx, req.ID, f.emp.ID)
	assert.ErrorIs(t, err, engine.ErrForbidden)

	updated, err := f.wfh.Approve(ctx, req.ID, f.hr.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.WfhApproved, updated.Status)
	require.NotNil(t, updated.ApprovedByID)
	assert.Equal(t, f.hr.ID, *updated.ApprovedByID)
}

func TestWfhReject_TerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.wfh.Submit(ctx, f.mgr.ID, engine.NewDate(2025, time.June, 18), "")
	require.NoError(t, err)

	updated, err := f.wfh.Reject(ctx, req.ID, f.hr.ID, "on-site week")
	require.NoError(t, err)
	assert.Equal(t, engine.WfhRejected, updated.Status)
	assert.Equal(t, "on-site week", updated.ActionRemark)

	_, err = f.wfh.Approve(ctx, req.ID, f.hr.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestWfhMonthlyUsage_AggregatesPerEmployee(t *testing.T) {
	// GIVEN: Two approved and one pending request for mgr in June
	// WHEN: Summarizing June usage
	// THEN: mgr shows 2 approved days and 1 pending

	f := newFixture(t)
	ctx := context.Background()

	for day, approve := range map[int]bool{18: true, 19: true, 20: false} {
		req, err := f.wfh.Submit(ctx, f.mgr.ID, engine.NewDate(2025, time.June, day), "")
		require.NoError(t, err)
		if approve {
			_, err = f.wfh.Approve(ctx, req.ID, f.hr.ID)
			require.NoError(t, err)
		}
	}

	usage, err := f.wfh.MonthlyUsage(ctx, engine.Month{Year: 2025, Month: time.June})
	require.NoError(t, err)
	require.Len(t, usage, 1)

	assert.Equal(t, f.mgr.ID, usage[0].EmployeeID)
	assert.True(t, usage[0].Approved.Equal(dec(t, "2")))
	assert.Equal(t, 1, usage[0].Pending)
}
