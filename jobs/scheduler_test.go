package jobs

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls atomic.Int32
	err   error
}

func (f *fakePurger) PurgeExpiredSessions(context.Context) (int64, error) {
	f.calls.Add(1)
	return 2, f.err
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(&fakePurger{}, "every now and then", log.New(io.Discard))
	assert.Error(t, err)
}

func TestSweepSessions(t *testing.T) {
	p := &fakePurger{}
	s, err := NewScheduler(p, "@hourly", log.New(io.Discard))
	require.NoError(t, err)

	s.sweepSessions(p)
	p.err = errors.New("database is gone")
	s.sweepSessions(p)
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(&fakePurger{}, "@every 1h", log.New(io.Discard))
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())
}
