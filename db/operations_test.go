package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whoopsync/whoop"
)

type execCall struct {
	sql  string
	args []any
}

// recordingConn captures every Exec for assertion.
type recordingConn struct {
	calls   []execCall
	execErr error
}

func (c *recordingConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	c.calls = append(c.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (c *recordingConn) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func TestUpsertUserProfile(t *testing.T) {
	conn := &recordingConn{}
	store := NewStore(conn)

	err := store.UpsertUserProfile(context.Background(), &whoop.UserProfile{
		UserID:    12345,
		Email:     "user@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	require.Len(t, conn.calls, 1)
	assert.Contains(t, conn.calls[0].sql, "ON CONFLICT (user_id)")
	assert.Equal(t, []any{"12345", "user@example.com", "Ada", "Lovelace"}, conn.calls[0].args)
}

func TestUpsertBodyMeasurementReplacesRow(t *testing.T) {
	conn := &recordingConn{}
	store := NewStore(conn)

	err := store.UpsertBodyMeasurement(context.Background(), &whoop.BodyMeasurement{
		UserID:         12345,
		HeightMeter:    1.8,
		WeightKilogram: 75.5,
		MaxHeartRate:   192,
	})
	require.NoError(t, err)
	require.Len(t, conn.calls, 1)
	// Delete and insert run as one statement.
	assert.Contains(t, conn.calls[0].sql, "WITH deleted AS")
	assert.Equal(t, []any{"12345", 1.8, 75.5, 192}, conn.calls[0].args)
}

func TestUpsertEmptyInputIsNoOp(t *testing.T) {
	conn := &recordingConn{}
	store := NewStore(conn)
	ctx := context.Background()

	count, err := store.UpsertCycles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.UpsertRecoveries(ctx, []whoop.Recovery{})
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.UpsertSleeps(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.UpsertWorkouts(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Empty(t, conn.calls)
}

func TestUpsertCycles(t *testing.T) {
	conn := &recordingConn{}
	store := NewStore(conn)

	start := time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	count, err := store.UpsertCycles(context.Background(), []whoop.Cycle{
		{
			ID:             93845,
			UserID:         12345,
			Start:          start,
			End:            &end,
			TimezoneOffset: "-05:00",
			ScoreState:     "SCORED",
			Score: &whoop.CycleScore{
				Strain:           13.2,
				Kilojoule:        8000.5,
				AverageHeartRate: 68,
				MaxHeartRate:     155,
			},
		},
		{
			// An unscored in-progress cycle: open end, no score.
			ID:         93846,
			UserID:     12345,
			Start:      end,
			ScoreState: "PENDING_SCORE",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, conn.calls, 2)

	scored := conn.calls[0].args
	assert.Equal(t, "93845", scored[0])
	assert.Equal(t, "12345", scored[1])
	assert.Equal(t, 13.2, scored[5])

	pending := conn.calls[1].args
	assert.Equal(t, "93846", pending[0])
	assert.Nil(t, pending[3]) // end_time
	assert.Nil(t, pending[5]) // score_strain
	assert.Nil(t, pending[8]) // score_max_heart_rate
}

func TestUpsertRecoveriesUnknownUser(t *testing.T) {
	conn := &recordingConn{}
	store := NewStore(conn)

	count, err := store.UpsertRecoveries(context.Background(), []whoop.Recovery{
		{CycleID: 93845, SleepID: "sleep-1", ScoreState: "SCORED"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	args := conn.calls[0].args
	assert.Equal(t, "93845", args[0])
	// A missing user id still satisfies the NOT NULL column.
	assert.Equal(t, "unknown", args[1])
	assert.Equal(t, "sleep-1", args[2])
}

func TestUpsertSleepsFlattensNestedScore(t *testing.T) {
	conn := &recordingConn{}
	store := NewStore(conn)

	start := time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	count, err := store.UpsertSleeps(context.Background(), []whoop.Sleep{
		{
			ID:             "sleep-1",
			UserID:         12345,
			Start:          start,
			End:            &end,
			TimezoneOffset: "-05:00",
			ScoreState:     "SCORED",
			Score: &whoop.SleepScore{
				StageSummary: &whoop.SleepStages{
					TotalInBedTimeMilli:    28800000,
					TotalREMSleepTimeMilli: 5400000,
					SleepCycleCount:        5,
				},
				SleepNeeded:                &whoop.SleepNeeded{BaselineMilli: 27600000},
				RespiratoryRate:            15.2,
				SleepPerformancePercentage: 92.0,
			},
		},
		{
			ID:         "sleep-2",
			UserID:     12345,
			Start:      end,
			Nap:        true,
			ScoreState: "PENDING_SCORE",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, conn.calls, 2)

	scored := conn.calls[0].args
	assert.Equal(t, "sleep-1", scored[0])
	assert.Equal(t, int64(28800000), scored[6])  // total_in_bed_time_milli
	assert.Equal(t, int64(5400000), scored[11])  // total_rem_sleep_time_milli
	assert.Equal(t, int64(27600000), scored[14]) // baseline_milli
	assert.Equal(t, 15.2, scored[18])            // respiratory_rate

	unscored := conn.calls[1].args
	assert.Equal(t, true, unscored[5]) // nap
	for i := 6; i <= 21; i++ {
		assert.Nil(t, unscored[i], "score column %d must be NULL", i)
	}
}

func TestUpsertWorkoutsFlattensZones(t *testing.T) {
	conn := &recordingConn{}
	store := NewStore(conn)

	distance := 10500.0
	start := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	count, err := store.UpsertWorkouts(context.Background(), []whoop.Workout{
		{
			ID:             "workout-1",
			UserID:         12345,
			Start:          start,
			End:            &end,
			TimezoneOffset: "-05:00",
			SportID:        0,
			ScoreState:     "SCORED",
			Score: &whoop.WorkoutScore{
				Strain:           10.1,
				AverageHeartRate: 140,
				MaxHeartRate:     175,
				Kilojoule:        2400.0,
				PercentRecorded:  100,
				DistanceMeter:    &distance,
				ZoneDuration:     &whoop.WorkoutZones{ZoneTwoMilli: 1200000, ZoneThreeMilli: 1800000},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	args := conn.calls[0].args
	assert.Equal(t, "workout-1", args[0])
	assert.Equal(t, 10.1, args[6])
	assert.Equal(t, &distance, args[11])
	assert.Equal(t, int64(1200000), args[16]) // zone_two_milli
	assert.Equal(t, int64(1800000), args[17]) // zone_three_milli
}

func TestUpsertPropagatesDatabaseError(t *testing.T) {
	conn := &recordingConn{execErr: errors.New("deadlock detected")}
	store := NewStore(conn)

	_, err := store.UpsertCycles(context.Background(), []whoop.Cycle{{ID: 1, UserID: 12345}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
}
