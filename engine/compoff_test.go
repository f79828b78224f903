package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/engine"
)

func TestCompoffSubmit_SundayWorkAccepted(t *testing.T) {
	// GIVEN: An employee who worked Sunday June 8 with attendance recorded
	// WHEN: Claiming comp-off
	// THEN: A pending claim is created with no wallet effect yet

	f := newFixture(t)
	req, err := f.compoff.Submit(context.Background(), engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.June, 8),
		Reason:        "release weekend",
		HasAttendance: true,
	})
	require.NoError(t, err)

	assert.Equal(t, engine.CompoffPending, req.Status)
	wallet, err := f.compoff.Balance(context.Background(), f.emp.ID, 2025)
	require.NoError(t, err)
	assert.True(t, wallet.Available.IsZero())
}

func TestCompoffSubmit_WeekdayRejectedUnlessHoliday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Wednesday June 11 is an ordinary working day.
	_, err := f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.June, 11),
		HasAttendance: true,
	})
	assert.ErrorIs(t, err, engine.ErrPolicyViolation)

	// The same date as an active holiday is claimable.
	require.NoError(t, f.store.SaveHoliday(ctx, &engine.Holiday{
		Date: engine.NewDate(2025, time.June, 11), Name: "Founders Day", Active: true,
	}))
	_, err = f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.June, 11),
		HasAttendance: true,
	})
	assert.NoError(t, err)
}

func TestCompoffSubmit_RequiresAttendanceAndPastDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID: f.emp.ID,
		WorkedDate: engine.NewDate(2025, time.June, 8),
	})
	assert.ErrorIs(t, err, engine.ErrPolicyViolation, "no attendance record")

	_, err = f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.June, 22),
		HasAttendance: true,
	})
	assert.ErrorIs(t, err, engine.ErrValidation, "future Sunday")
}

func TestCompoffApprove_CreditsWallet(t *testing.T) {
	// GIVEN: A pending Sunday claim
	// WHEN: The direct manager approves
	// THEN: The wallet gains one day

	f := newFixture(t)
	ctx := context.Background()
	req, err := f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.June, 8),
		HasAttendance: true,
	})
	require.NoError(t, err)

	updated, err := f.compoff.Approve(ctx, req.ID, f.mgr.ID)
	require.NoError(t, err)

	assert.Equal(t, engine.CompoffApproved, updated.Status)
	wallet, err := f.compoff.Balance(ctx, f.emp.ID, 2025)
	require.NoError(t, err)
	assert.True(t, wallet.Available.Equal(dec(t, "1")))
}

func TestCompoffApprove_AuthorityEnforced(t *testing.T) {
	// GIVEN: A pending claim from emp (reports to mgr)
	// WHEN: An unrelated manager acts on it
	// THEN: Forbidden; HR may always act

	f := newFixture(t)
	ctx := context.Background()
	req, err := f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.June, 8),
		HasAttendance: true,
	})
	require.NoError(t, err)

	adminID := f.admin.ID
	other := &engine.Employee{
		EmpCode: "MGR002", Name: "Sanjay", Role: engine.RoleManager, RoleRank: 4,
		DepartmentID: f.mgr.DepartmentID, ReportingManagerID: &adminID,
		JoinDate: engine.NewDate(2022, time.May, 1), Active: true,
	}
	require.NoError(t, f.store.SaveEmployee(ctx, other))

	_, err = f.compoff.Approve(ctx, req.ID, other.ID)
	assert.ErrorIs(t, err, engine.ErrForbidden)

	_, err = f.compoff.Approve(ctx, req.ID, f.hr.ID)
	assert.NoError(t, err)
}

func TestCompoffReject_NoWalletEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.June, 8),
		HasAttendance: true,
	})
	require.NoError(t, err)

	updated, err := f.compoff.Reject(ctx, req.ID, f.mgr.ID, "not pre-approved")
	require.NoError(t, err)
	assert.Equal(t, engine.CompoffRejected, updated.Status)

	// Terminal: a later approval attempt fails.
	_, err = f.compoff.Approve(ctx, req.ID, f.hr.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidState)

	wallet, err := f.compoff.Balance(ctx, f.emp.ID, 2025)
	require.NoError(t, err)
	assert.True(t, wallet.Available.IsZero())
}

func TestCompoffExpiry_AgesFromWorkedDate(t *testing.T) {
	// GIVEN: A Sunday worked in early January, approved only in June
	// WHEN: Expiring as of June 16 (90-day window, cutoff March 18)
	// THEN: The credit expires; approval lag does not extend its life

	f := newFixture(t)
	ctx := context.Background()

	req, err := f.compoff.Submit(ctx, engine.SubmitCompoffInput{
		EmployeeID:    f.emp.ID,
		WorkedDate:    engine.NewDate(2025, time.January, 5),
		Reason:        "inventory count",
		HasAttendance: true,
	})
	require.NoError(t, err)
	_, err = f.compoff.Approve(ctx, req.ID, f.mgr.ID)
	require.NoError(t, err)

	expired, err := f.compoff.ExpireCredits(ctx, f.emp.ID, 2025, engine.NewDate(2025, time.June, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	wallet, err := f.compoff.Balance(ctx, f.emp.ID, 2025)
	require.NoError(t, err)
	assert.True(t, wallet.Available.IsZero())
}

func TestCompoffExpireAll_SweepsPreviousLedgerYear(t *testing.T) {
	// GIVEN: A credit earned in December 2024, sitting under ledger year 2024
	// WHEN: Sweeping everyone as of June 2025
	// THEN: The sweep reaches back into the previous year and expires it

	f := newFixture(t)
	ctx := context.Background()

	f.ledger.Now = func() time.Time { return time.Date(2024, time.December, 8, 9, 0, 0, 0, time.UTC) }
	_, err := f.ledger.Post(ctx, engine.PostInput{
		EmployeeID:     f.emp.ID,
		Year:           2024,
		LeaveType:      engine.LeaveCompoff,
		Delta:          dec(t, "1"),
		Action:         engine.ActionCompoffCredit,
		Remarks:        "comp-off for 2024-12-08",
		IdempotencyKey: "compoff-credit:dec-2024",
	})
	require.NoError(t, err)
	f.ledger.Now = func() time.Time { return testNow }

	expired, err := f.compoff.ExpireAll(ctx, engine.NewDate(2025, time.June, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	wallet, err := f.compoff.Balance(ctx, f.emp.ID, 2024)
	require.NoError(t, err)
	assert.True(t, wallet.Available.IsZero())
}

func TestCompoffExpiry_OldestCreditsExpireFirst(t *testing.T) {
	// GIVEN: Two credits, one from January (stale) and one from June (fresh),
	//        with one day already consumed
	// WHEN: Expiring as of mid-June with a 90-day window
	// THEN: The January credit counts as consumed (FIFO), so only the
	//        unconsumed part that is stale expires

	f := newFixture(t)
	ctx := context.Background()

	post := func(when time.Time, delta, action string, key string) {
		f.ledger.Now = func() time.Time { return when }
		act := engine.Action(action)
		_, err := f.ledger.Post(ctx, engine.PostInput{
			EmployeeID:     f.emp.ID,
			Year:           2025,
			LeaveType:      engine.LeaveCompoff,
			Delta:          dec(t, delta),
			Action:         act,
			IdempotencyKey: key,
		})
		require.NoError(t, err)
	}

	post(time.Date(2025, time.January, 5, 9, 0, 0, 0, time.UTC), "1", string(engine.ActionCompoffCredit), "c1")
	post(time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC), "-1", string(engine.ActionCompoffDebit), "d1")
	post(time.Date(2025, time.March, 2, 9, 0, 0, 0, time.UTC), "1", string(engine.ActionCompoffCredit), "c2")
	f.ledger.Now = func() time.Time { return testNow }

	// FIFO: the January credit is the consumed one; the March credit is
	// unconsumed and stale by June 16 (cutoff = 90 days back = March 18).
	expired, err := f.compoff.ExpireCredits(ctx, f.emp.ID, 2025, engine.NewDate(2025, time.June, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	wallet, err := f.compoff.Balance(ctx, f.emp.ID, 2025)
	require.NoError(t, err)
	assert.True(t, wallet.Available.IsZero())

	// Re-running expires nothing further.
	expired, err = f.compoff.ExpireCredits(ctx, f.emp.ID, 2025, engine.NewDate(2025, time.June, 16))
	require.NoError(t, err)
	assert.Zero(t, expired)
}
