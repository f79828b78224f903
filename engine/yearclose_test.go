package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/engine"
)

func TestYearClose_CarriesForwardPLUpToCap(t *testing.T) {
	// GIVEN: PL remaining 10 in 2024 with a carry-forward cap of 4
	// WHEN: Closing 2024
	// THEN: 4 days move into 2025, 6 days are encashed, 2024 nets to zero

	f := newFixture(t, testPolicy(2024), testPolicy(2025))
	f.credit(t, f.emp.ID, 2024, engine.LeavePL, "10", "seed:pl-2024")
	ctx := context.Background()

	result, err := f.yearClose.Run(ctx, 2024)
	require.NoError(t, err)

	assert.True(t, result.TotalCarried.Equal(dec(t, "4")), "got %s", result.TotalCarried)
	assert.True(t, result.TotalEncashed.Equal(dec(t, "6")), "got %s", result.TotalEncashed)
	assert.True(t, f.remaining(t, f.emp.ID, 2024, engine.LeavePL).IsZero())
	assert.True(t, f.remaining(t, f.emp.ID, 2025, engine.LeavePL).Equal(dec(t, "4")))
}

func TestYearClose_PLWithinCapCarriesEverything(t *testing.T) {
	f := newFixture(t, testPolicy(2024), testPolicy(2025))
	f.credit(t, f.emp.ID, 2024, engine.LeavePL, "3", "seed:pl-2024")
	ctx := context.Background()

	result, err := f.yearClose.Run(ctx, 2024)
	require.NoError(t, err)

	assert.True(t, result.TotalCarried.Equal(dec(t, "3")))
	assert.True(t, result.TotalEncashed.IsZero())
	assert.True(t, f.remaining(t, f.emp.ID, 2025, engine.LeavePL).Equal(dec(t, "3")))
}

func TestYearClose_NonPLTypesLapse(t *testing.T) {
	// GIVEN: CL 3 and SL 2 remaining in 2024
	// WHEN: Closing 2024
	// THEN: Both lapse to zero, nothing carries

	f := newFixture(t, testPolicy(2024), testPolicy(2025))
	f.credit(t, f.emp.ID, 2024, engine.LeaveCL, "3", "seed:cl-2024")
	f.credit(t, f.emp.ID, 2024, engine.LeaveSL, "2", "seed:sl-2024")
	ctx := context.Background()

	result, err := f.yearClose.Run(ctx, 2024)
	require.NoError(t, err)

	assert.True(t, result.TotalLapsed.Equal(dec(t, "5")))
	assert.True(t, f.remaining(t, f.emp.ID, 2024, engine.LeaveCL).IsZero())
	assert.True(t, f.remaining(t, f.emp.ID, 2024, engine.LeaveSL).IsZero())
	assert.True(t, f.remaining(t, f.emp.ID, 2025, engine.LeaveCL).IsZero())
}

func TestYearClose_RerunIsNoop(t *testing.T) {
	// GIVEN: 2024 already closed
	// WHEN: Running the close again
	// THEN: Employees are reported as already closed, balances unchanged

	f := newFixture(t, testPolicy(2024), testPolicy(2025))
	f.credit(t, f.emp.ID, 2024, engine.LeavePL, "10", "seed:pl-2024")
	ctx := context.Background()

	_, err := f.yearClose.Run(ctx, 2024)
	require.NoError(t, err)
	carried := f.remaining(t, f.emp.ID, 2025, engine.LeavePL)

	second, err := f.yearClose.Run(ctx, 2024)
	require.NoError(t, err)

	assert.NotZero(t, second.AlreadyClosed)
	assert.Zero(t, second.Failed)
	assert.True(t, second.TotalCarried.IsZero())
	assert.True(t, f.remaining(t, f.emp.ID, 2025, engine.LeavePL).Equal(carried))
}

func TestYearClose_ConsecutiveYears(t *testing.T) {
	// GIVEN: PL 10 in 2023 (carrying 4 into 2024 at close) and CL 3 in 2024
	// WHEN: Closing 2023 and then 2024
	// THEN: The 2024 close processes the employee despite the carry-in
	//       credit sitting in its ledger year: CL lapses, PL carries again

	f := newFixture(t, testPolicy(2023), testPolicy(2024), testPolicy(2025))
	f.credit(t, f.emp.ID, 2023, engine.LeavePL, "10", "seed:pl-2023")
	f.credit(t, f.emp.ID, 2024, engine.LeaveCL, "3", "seed:cl-2024")
	ctx := context.Background()

	first, err := f.yearClose.Run(ctx, 2023)
	require.NoError(t, err)
	require.True(t, first.TotalCarried.Equal(dec(t, "4")))
	require.True(t, f.remaining(t, f.emp.ID, 2024, engine.LeavePL).Equal(dec(t, "4")))

	second, err := f.yearClose.Run(ctx, 2024)
	require.NoError(t, err)

	assert.Zero(t, second.AlreadyClosed, "carry-in must not count as a settled 2024")
	assert.True(t, second.TotalLapsed.Equal(dec(t, "3")), "got %s", second.TotalLapsed)
	assert.True(t, second.TotalCarried.Equal(dec(t, "4")), "got %s", second.TotalCarried)
	assert.True(t, f.remaining(t, f.emp.ID, 2024, engine.LeaveCL).IsZero())
	assert.True(t, f.remaining(t, f.emp.ID, 2025, engine.LeavePL).Equal(dec(t, "4")))
}

func TestYearClose_CurrentAndFutureYearsRejected(t *testing.T) {
	f := newFixture(t, testPolicy(2025))
	ctx := context.Background()

	_, err := f.yearClose.Run(ctx, 2025)
	assert.ErrorIs(t, err, engine.ErrValidation, "the clock says June 2025")

	_, err = f.yearClose.Run(ctx, 2026)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestYearClose_MissingPolicyFails(t *testing.T) {
	f := newFixture(t, testPolicy(2025))
	_, err := f.yearClose.Run(context.Background(), 2023)
	assert.ErrorIs(t, err, engine.ErrPolicyNotFound)
}

func TestYearClose_ExpiresStaleCompoffCredits(t *testing.T) {
	// GIVEN: A comp-off credit earned early January 2024, never consumed
	// WHEN: Closing 2024 (expiry window 90 days)
	// THEN: The credit is expired as part of the close

	f := newFixture(t, testPolicy(2024), testPolicy(2025))
	ctx := context.Background()

	f.ledger.Now = func() time.Time { return time.Date(2024, time.January, 7, 9, 0, 0, 0, time.UTC) }
	_, err := f.ledger.Post(ctx, engine.PostInput{
		EmployeeID:     f.emp.ID,
		Year:           2024,
		LeaveType:      engine.LeaveCompoff,
		Delta:          dec(t, "1"),
		Action:         engine.ActionCompoffCredit,
		Remarks:        "comp-off for 2024-01-07",
		IdempotencyKey: "compoff-credit:test-1",
	})
	require.NoError(t, err)
	f.ledger.Now = func() time.Time { return testNow }

	result, err := f.yearClose.Run(ctx, 2024)
	require.NoError(t, err)

	assert.Equal(t, 1, result.CompoffExpired)
	wallet, err := f.projector.CompoffBalance(ctx, f.emp.ID, 2024)
	require.NoError(t, err)
	assert.True(t, wallet.Available.IsZero())
}
