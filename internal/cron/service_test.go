package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.released++
	return nil
}

type testJob struct {
	name  string
	err   error
	runs  int
	onRun func()
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	if t.onRun != nil {
		t.onRun()
	}
	return t.err
}

func mustRegistry(t *testing.T, jobs ...Job) *Registry {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	return registry
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	first := &testJob{name: "fail-a", err: errors.New("boom")}
	second := &testJob{name: "success"}
	third := &testJob{name: "fail-b", err: errors.New("bust")}
	lock := &fakeLock{}

	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: mustRegistry(t, first, second, third),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	err = service.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "fail-a")
	assert.Contains(t, err.Error(), "fail-b")

	assert.Equal(t, 1, first.runs)
	assert.Equal(t, 1, second.runs)
	assert.Equal(t, 1, third.runs)
	assert.Equal(t, 1, lock.released)
	assert.False(t, lock.acquired)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "sweep"}
	lock := &fakeLock{acquired: true}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: mustRegistry(t, job),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.released)
}

func TestRunOnceCountsSkippedCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: mustRegistry(t, &testJob{name: "sweep"}),
		Lock:     &fakeLock{acquired: true},
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	require.NoError(t, service.RunOnce(context.Background()))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var skipped float64
	for _, mf := range mfs {
		if mf.GetName() != "cron_cycles_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == "skipped" {
					skipped += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, skipped)
}

func TestRunExecutesFirstCycleImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job := &testJob{name: "sweep", onRun: cancel}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: mustRegistry(t, job),
		Lock:     lock,
		Interval: time.Hour,
	})
	require.NoError(t, err)

	err = service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs)
	assert.Equal(t, 1, lock.released)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "sweep"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: mustRegistry(t, job),
		Lock:     &fakeLock{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, job.runs)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)
}
