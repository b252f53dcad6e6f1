package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/NordCoder/Alertus/internal/domain/alert"
	"github.com/NordCoder/Alertus/internal/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubExpirer struct {
	calls atomic.Int32
	out   []*alert.Alert
	err   error
}

func (s *stubExpirer) ExpireDue(context.Context) ([]*alert.Alert, error) {
	s.calls.Add(1)
	return s.out, s.err
}

type stubSweeper struct {
	calls  atomic.Int32
	rep    reminder.SweepReport
	err    error
	onCall func()
}

func (s *stubSweeper) Sweep(context.Context) (reminder.SweepReport, error) {
	s.calls.Add(1)
	if s.onCall != nil {
		s.onCall()
	}
	return s.rep, s.err
}

func TestTick_ExpiresThenSweeps(t *testing.T) {
	exp := &stubExpirer{out: []*alert.Alert{{ID: 1}, {ID: 2}}}
	sw := &stubSweeper{rep: reminder.SweepReport{Candidates: 3, Reminded: 2}}

	res, err := NewUC(exp, sw).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 2, res.Report.Reminded)
	assert.False(t, res.Skipped)
}

func TestTick_ExpiryErrorStillSweeps(t *testing.T) {
	exp := &stubExpirer{err: errors.New("db down")}
	sw := &stubSweeper{}

	_, err := NewUC(exp, sw).Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expire due")
	assert.EqualValues(t, 1, sw.calls.Load())
}

func TestTick_SweepInProgressIsNotAnError(t *testing.T) {
	sw := &stubSweeper{err: reminder.ErrSweepInProgress}

	res, err := NewUC(&stubExpirer{}, sw).Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestRun_RunOnStartThenStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sw := &stubSweeper{onCall: cancel}

	r := New(zap.NewNop(), NewUC(&stubExpirer{}, sw), Config{Spec: "@every 1h", RunOnStart: true})
	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, sw.calls.Load())
}

func TestRun_BadSpec(t *testing.T) {
	r := New(nil, NewUC(&stubExpirer{}, &stubSweeper{}), Config{Spec: "every now and then"})
	require.Error(t, r.Run(context.Background()))
}
