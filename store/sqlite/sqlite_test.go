/*
Tests for the SQLite store. Every test opens a fresh ":memory:"
database, so they exercise the real schema and SQL without touching
disk.
*/
package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/engine"
	"github.com/warp/leave-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func saveEmployee(t *testing.T, store *sqlite.Store) *engine.Employee {
	t.Helper()
	emp := &engine.Employee{
		EmpCode:  "EMP001",
		Name:     "Asha",
		Role:     engine.RoleEmployee,
		RoleRank: 5,
		JoinDate: engine.NewDate(2024, time.January, 15),
		Active:   true,
	}
	require.NoError(t, store.SaveEmployee(context.Background(), emp))
	require.NotZero(t, emp.ID)
	return emp
}

func makeTx(emp engine.EmployeeID, id, key string, delta decimal.Decimal) engine.Transaction {
	return engine.Transaction{
		ID:             engine.TransactionID(id),
		EmployeeID:     emp,
		Year:           2025,
		LeaveType:      engine.LeavePL,
		Delta:          delta,
		Action:         engine.ActionAccrueMonthly,
		ActionAt:       time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: key,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestAppendTransactionRejectsDuplicateKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	// GIVEN a posted accrual
	tx := makeTx(emp.ID, "tx-1", "accrual:2025-06", dec(t, "0.5833"))
	require.NoError(t, store.AppendTransaction(ctx, tx))

	// WHEN the same idempotency key is written again
	retry := makeTx(emp.ID, "tx-2", "accrual:2025-06", dec(t, "0.5833"))
	err := store.AppendTransaction(ctx, retry)

	// THEN the retry is rejected and the ledger holds a single row
	assert.ErrorIs(t, err, engine.ErrDuplicateIdempotencyKey)

	txs, err := store.LoadTransactions(ctx, emp.ID, 2025, engine.LeavePL)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, engine.TransactionID("tx-1"), txs[0].ID)
	assert.True(t, txs[0].Delta.Equal(dec(t, "0.5833")))
}

func TestAppendTransactionsBatchIsAtomic(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	require.NoError(t, store.AppendTransaction(ctx,
		makeTx(emp.ID, "tx-1", "key-1", dec(t, "1"))))

	// A batch containing an already-used key must leave no partial rows.
	batch := []engine.Transaction{
		makeTx(emp.ID, "tx-2", "key-2", dec(t, "1")),
		makeTx(emp.ID, "tx-3", "key-1", dec(t, "1")),
	}
	err := store.AppendTransactions(ctx, batch)
	assert.ErrorIs(t, err, engine.ErrDuplicateIdempotencyKey)

	txs, err := store.LoadTransactions(ctx, emp.ID, 2025, engine.LeavePL)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "failed batch must not be partially applied")
}

func TestAppendTransactionsRejectsIntraBatchDuplicate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	batch := []engine.Transaction{
		makeTx(emp.ID, "tx-1", "same-key", dec(t, "1")),
		makeTx(emp.ID, "tx-2", "same-key", dec(t, "1")),
	}
	err := store.AppendTransactions(ctx, batch)
	assert.ErrorIs(t, err, engine.ErrDuplicateIdempotencyKey)

	txs, err := store.LoadTransactions(ctx, emp.ID, 2025, engine.LeavePL)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestTransactionExists(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	require.NoError(t, store.AppendTransaction(ctx,
		makeTx(emp.ID, "tx-1", "accrual:2025-06", dec(t, "0.5833"))))

	exists, err := store.TransactionExists(ctx, "accrual:2025-06")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.TransactionExists(ctx, "accrual:2025-07")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoadTransactionsRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)
	actor := emp.ID
	reqID := engine.RequestID(42)

	tx := engine.Transaction{
		ID:             "tx-full",
		EmployeeID:     emp.ID,
		Year:           2025,
		LeaveType:      engine.LeaveCL,
		Delta:          dec(t, "-2"),
		Action:         engine.ActionDebitApproved,
		Remarks:        "approved leave",
		ActionBy:       &actor,
		ActionAt:       time.Date(2025, time.June, 16, 10, 0, 0, 0, time.UTC),
		LeaveRequestID: &reqID,
		IdempotencyKey: "leave-debit:42",
	}
	require.NoError(t, store.AppendTransaction(ctx, tx))

	txs, err := store.LoadTransactions(ctx, emp.ID, 2025, engine.LeaveCL)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	got := txs[0]
	assert.Equal(t, tx.ID, got.ID)
	assert.True(t, got.Delta.Equal(tx.Delta))
	assert.Equal(t, tx.Action, got.Action)
	assert.Equal(t, "approved leave", got.Remarks)
	require.NotNil(t, got.ActionBy)
	assert.Equal(t, actor, *got.ActionBy)
	require.NotNil(t, got.LeaveRequestID)
	assert.Equal(t, reqID, *got.LeaveRequestID)
	assert.True(t, tx.ActionAt.Equal(got.ActionAt))
}

// =============================================================================
// LEAVE REQUEST TRANSITIONS
// =============================================================================

func pendingRequest(t *testing.T, store *sqlite.Store, emp *engine.Employee) *engine.LeaveRequest {
	t.Helper()
	req := &engine.LeaveRequest{
		EmployeeID:   emp.ID,
		LeaveType:    engine.LeaveCL,
		FromDate:     engine.NewDate(2025, time.June, 18),
		ToDate:       engine.NewDate(2025, time.June, 20),
		Reason:       "errand",
		Status:       engine.LeavePending,
		ComputedDays: dec(t, "3"),
		PaidDays:     dec(t, "3"),
		LwpDays:      decimal.Zero,
		AppliedAt:    time.Date(2025, time.June, 16, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateLeaveRequest(context.Background(), req))
	require.NotZero(t, req.ID)
	return req
}

func TestTransitionLeaveRequestCompareAndSwap(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)
	req := pendingRequest(t, store, emp)

	// WHEN the pending request is approved
	updated, err := store.TransitionLeaveRequest(ctx, req.ID, engine.LeaveTransition{
		From:    engine.LeavePending,
		To:      engine.LeaveApproved,
		ActorID: emp.ID,
		Remark:  "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.LeaveApproved, updated.Status)
	assert.Equal(t, "ok", updated.ApprovedRemark)
	require.NotNil(t, updated.ApprovedAt)

	// THEN a second approval loses the compare-and-swap
	_, err = store.TransitionLeaveRequest(ctx, req.ID, engine.LeaveTransition{
		From:    engine.LeavePending,
		To:      engine.LeaveApproved,
		ActorID: emp.ID,
	})
	var stateErr *engine.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, string(engine.LeaveApproved), stateErr.Current)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestTransitionLeaveRequestUnknownID(t *testing.T) {
	store := newStore(t)

	_, err := store.TransitionLeaveRequest(context.Background(), 999, engine.LeaveTransition{
		From: engine.LeavePending,
		To:   engine.LeaveApproved,
	})
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestTransitionLeaveRequestRejectedStampsActor(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)
	req := pendingRequest(t, store, emp)

	updated, err := store.TransitionLeaveRequest(ctx, req.ID, engine.LeaveTransition{
		From:    engine.LeavePending,
		To:      engine.LeaveRejected,
		ActorID: emp.ID,
		Remark:  "coverage needed",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.LeaveRejected, updated.Status)
	assert.Equal(t, "coverage needed", updated.RejectedRemark)
	require.NotNil(t, updated.RejectedByID)
	assert.Equal(t, emp.ID, *updated.RejectedByID)
	require.NotNil(t, updated.RejectedAt)
}

func TestListLeaveRequestsFilterAndTotal(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	for day := 1; day <= 5; day++ {
		req := &engine.LeaveRequest{
			EmployeeID:   emp.ID,
			LeaveType:    engine.LeaveCL,
			FromDate:     engine.NewDate(2025, time.July, day),
			ToDate:       engine.NewDate(2025, time.July, day),
			Status:       engine.LeavePending,
			ComputedDays: dec(t, "1"),
			PaidDays:     dec(t, "1"),
			LwpDays:      decimal.Zero,
			AppliedAt:    time.Date(2025, time.June, 16, 10, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.CreateLeaveRequest(ctx, req))
	}

	status := engine.LeavePending
	got, total, err := store.ListLeaveRequests(ctx, engine.LeaveRequestFilter{
		EmployeeID: &emp.ID,
		Status:     &status,
		Limit:      2,
		Offset:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total, "total counts all matches, not just the page")
	require.Len(t, got, 2)
	// Newest first.
	assert.True(t, got[0].ID > got[1].ID)
}

func TestListOverlappingLeaveIgnoresTerminalStates(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)
	req := pendingRequest(t, store, emp)

	_, err := store.TransitionLeaveRequest(ctx, req.ID, engine.LeaveTransition{
		From:    engine.LeavePending,
		To:      engine.LeaveRejected,
		ActorID: emp.ID,
		Remark:  "no",
	})
	require.NoError(t, err)

	overlaps, err := store.ListOverlappingLeave(ctx, emp.ID,
		engine.NewDate(2025, time.June, 18), engine.NewDate(2025, time.June, 20))
	require.NoError(t, err)
	assert.Empty(t, overlaps, "rejected requests do not block new ones")
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPutPolicyLockedAfterLedgerActivity(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	policy := engine.DefaultPolicy(2025)
	require.NoError(t, store.PutPolicy(ctx, policy))

	// Amendments are fine while the year's ledger is empty.
	policy.AnnualCL = 6
	require.NoError(t, store.PutPolicy(ctx, policy))

	got, err := store.GetPolicy(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 6, got.AnnualCL)
	assert.True(t, got.MonthlyCreditPL.Equal(policy.MonthlyCreditPL))

	// Once a transaction is posted for the year, the policy is locked.
	require.NoError(t, store.AppendTransaction(ctx,
		makeTx(emp.ID, "tx-1", "accrual:2025-06", dec(t, "0.5833"))))

	policy.AnnualCL = 7
	err = store.PutPolicy(ctx, policy)
	assert.ErrorIs(t, err, engine.ErrPolicyViolation)

	// Other years stay editable.
	require.NoError(t, store.PutPolicy(ctx, engine.DefaultPolicy(2026)))
}

func TestGetPolicyMissingYear(t *testing.T) {
	store := newStore(t)

	_, err := store.GetPolicy(context.Background(), 2030)
	assert.ErrorIs(t, err, engine.ErrPolicyNotFound)
}

// =============================================================================
// MASTERS
// =============================================================================

func TestSaveEmployeeInsertAndUpdate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	emp.Name = "Asha K"
	emp.Active = false
	require.NoError(t, store.SaveEmployee(ctx, emp))

	got, err := store.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha K", got.Name)
	assert.False(t, got.Active)
	assert.Equal(t, emp.JoinDate, got.JoinDate)

	byCode, err := store.GetEmployeeByCode(ctx, "EMP001")
	require.NoError(t, err)
	assert.Equal(t, emp.ID, byCode.ID)

	_, err = store.GetEmployeeByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSaveRoleUpsertsByName(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	role := &engine.RoleDefinition{Name: engine.RoleManager, RoleRank: 4, WfhEnabled: true, IsActive: true}
	require.NoError(t, store.SaveRole(ctx, role))

	role.WfhEnabled = false
	require.NoError(t, store.SaveRole(ctx, role))

	got, err := store.GetRole(ctx, engine.RoleManager)
	require.NoError(t, err)
	assert.False(t, got.WfhEnabled)
	assert.Equal(t, 4, got.RoleRank)

	roles, err := store.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestHolidaysFilterByYear(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHoliday(ctx, &engine.Holiday{
		Date: engine.NewDate(2025, time.August, 15), Name: "Independence Day", Active: true,
	}))
	require.NoError(t, store.SaveHoliday(ctx, &engine.Holiday{
		Date: engine.NewDate(2026, time.January, 26), Name: "Republic Day", Active: true,
	}))

	holidays, err := store.ListHolidays(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Independence Day", holidays[0].Name)
}

// =============================================================================
// COMP-OFF & WFH TRANSITIONS
// =============================================================================

func TestTransitionCompoffRequest(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	req := &engine.CompoffRequest{
		EmployeeID: emp.ID,
		WorkedDate: engine.NewDate(2025, time.June, 8),
		Reason:     "release weekend",
		Status:     engine.CompoffPending,
		AppliedAt:  time.Date(2025, time.June, 9, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateCompoffRequest(ctx, req))

	updated, err := store.TransitionCompoffRequest(ctx, req.ID, engine.CompoffTransition{
		From:    engine.CompoffPending,
		To:      engine.CompoffApproved,
		ActorID: emp.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, engine.CompoffApproved, updated.Status)
	require.NotNil(t, updated.ApprovedByID)

	_, err = store.TransitionCompoffRequest(ctx, req.ID, engine.CompoffTransition{
		From:    engine.CompoffPending,
		To:      engine.CompoffRejected,
		ActorID: emp.ID,
		Remark:  "late",
	})
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestListWfhRequestsByMonth(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := saveEmployee(t, store)

	for _, d := range []engine.Date{
		engine.NewDate(2025, time.June, 17),
		engine.NewDate(2025, time.June, 19),
		engine.NewDate(2025, time.July, 1),
	} {
		require.NoError(t, store.CreateWfhRequest(ctx, &engine.WfhRequest{
			EmployeeID:  emp.ID,
			RequestDate: d,
			Status:      engine.WfhPending,
			AppliedAt:   time.Date(2025, time.June, 16, 10, 0, 0, 0, time.UTC),
		}))
	}

	month, err := engine.ParseMonth("2025-06")
	require.NoError(t, err)

	got, err := store.ListWfhRequests(ctx, &emp.ID, nil, &month)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
