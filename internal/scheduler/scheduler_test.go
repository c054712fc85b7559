package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons", zerolog.Nop())
	assert.Error(t, err)
}

func TestAddAndRemoveJobs(t *testing.T) {
	s, err := New("UTC", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.AddTrendingWarm("*/15 * * * *", noop))
	require.NoError(t, s.AddHousekeeping("@hourly", noop))
	require.NoError(t, s.AddTrendingWarm("", noop), "empty schedule is a no-op")

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobHousekeeping, jobs[0].Name)
	assert.Equal(t, JobTrendingWarm, jobs[1].Name)

	s.RemoveJob(JobTrendingWarm)
	jobs = s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, JobHousekeeping, jobs[0].Name)
}

func TestAddJobReplacesSameName(t *testing.T) {
	s, err := New("UTC", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.AddJob("x", "@hourly", noop))
	require.NoError(t, s.AddJob("x", "@daily", noop))
	assert.Len(t, s.ListJobs(), 1)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s, err := New("UTC", zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, s.AddJob("bad", "every tuesday", noop))
}

func TestRunNow(t *testing.T) {
	s, err := New("UTC", zerolog.Nop())
	require.NoError(t, err)

	ran := false
	require.NoError(t, s.RunNow("once", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow("fails", func(context.Context) error { return boom }), boom)
}
