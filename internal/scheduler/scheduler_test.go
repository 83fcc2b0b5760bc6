package scheduler_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleweather/weathersync/internal/scheduler"
)

// fakeSyncer implements scheduler.Syncer.
type fakeSyncer struct {
	calls  int
	syncFn func(ctx context.Context) error
}

func (f *fakeSyncer) SyncAllCities(ctx context.Context) error {
	f.calls++
	if f.syncFn != nil {
		return f.syncFn(ctx)
	}
	return nil
}

// fakeSettings implements scheduler.SettingsSource.
type fakeSettings struct {
	autoUpdate    bool
	autoUpdateErr error
	notifications bool
	interval      time.Duration
	intervalErr   error
}

func (f *fakeSettings) AutoUpdateEnabled(_ context.Context) (bool, error) {
	return f.autoUpdate, f.autoUpdateErr
}

func (f *fakeSettings) NotificationsEnabled(_ context.Context) (bool, error) {
	return f.notifications, nil
}

func (f *fakeSettings) UpdateInterval(_ context.Context) (time.Duration, error) {
	return f.interval, f.intervalErr
}

// fakeNotifier implements scheduler.Notifier.
type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) WeatherUpdated(_ context.Context) error {
	f.calls++
	return f.err
}

func defaultFakeSettings() *fakeSettings {
	return &fakeSettings{autoUpdate: true, notifications: true, interval: 3 * time.Hour}
}

func newTestScheduler(syncer *fakeSyncer, settings *fakeSettings, notifier *fakeNotifier, cfg scheduler.Config) *scheduler.Scheduler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return scheduler.New(syncer, settings, notifier, log, cfg)
}

func TestRunOnce_Success(t *testing.T) {
	syncer := &fakeSyncer{}
	notifier := &fakeNotifier{}
	s := newTestScheduler(syncer, defaultFakeSettings(), notifier, scheduler.Config{})

	updated := s.Updated()

	outcome := s.RunOnce(context.Background())
	assert.Equal(t, scheduler.OutcomeSuccess, outcome)
	assert.Equal(t, 1, syncer.calls)
	assert.Equal(t, 1, notifier.calls)

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("no completion signal on the updated channel")
	}
}

func TestRunOnce_SkippedWhenAutoUpdateDisabled(t *testing.T) {
	syncer := &fakeSyncer{}
	settings := defaultFakeSettings()
	settings.autoUpdate = false
	s := newTestScheduler(syncer, settings, &fakeNotifier{}, scheduler.Config{})

	outcome := s.RunOnce(context.Background())
	assert.Equal(t, scheduler.OutcomeSkipped, outcome)
	assert.Equal(t, 0, syncer.calls)
}

func TestRunOnce_SkippedWhenOffline(t *testing.T) {
	syncer := &fakeSyncer{}
	cfg := scheduler.Config{Online: func(context.Context) bool { return false }}
	s := newTestScheduler(syncer, defaultFakeSettings(), &fakeNotifier{}, cfg)

	outcome := s.RunOnce(context.Background())
	assert.Equal(t, scheduler.OutcomeSkipped, outcome)
	assert.Equal(t, 0, syncer.calls)
}

func TestRunOnce_NotificationsDisabled(t *testing.T) {
	notifier := &fakeNotifier{}
	settings := defaultFakeSettings()
	settings.notifications = false
	s := newTestScheduler(&fakeSyncer{}, settings, notifier, scheduler.Config{})

	outcome := s.RunOnce(context.Background())
	assert.Equal(t, scheduler.OutcomeSuccess, outcome)
	assert.Equal(t, 0, notifier.calls)
}

func TestRunOnce_NotifierFailureIsNonFatal(t *testing.T) {
	notifier := &fakeNotifier{err: fmt.Errorf("toast service down")}
	s := newTestScheduler(&fakeSyncer{}, defaultFakeSettings(), notifier, scheduler.Config{})

	outcome := s.RunOnce(context.Background())
	assert.Equal(t, scheduler.OutcomeSuccess, outcome)
	assert.Equal(t, 1, notifier.calls)
}

func TestRunOnce_RetryOnSyncFailure(t *testing.T) {
	syncer := &fakeSyncer{syncFn: func(context.Context) error {
		return fmt.Errorf("upstream down")
	}}
	s := newTestScheduler(syncer, defaultFakeSettings(), &fakeNotifier{}, scheduler.Config{
		RetryDelay: time.Hour,
	})

	outcome := s.RunOnce(context.Background())
	assert.Equal(t, scheduler.OutcomeRetry, outcome)
}

func TestRunOnce_FailureAfterRetriesExhausted(t *testing.T) {
	syncer := &fakeSyncer{syncFn: func(context.Context) error {
		return fmt.Errorf("upstream down")
	}}
	s := newTestScheduler(syncer, defaultFakeSettings(), &fakeNotifier{}, scheduler.Config{
		RetryDelay: time.Hour,
		MaxRetries: 2,
	})

	ctx := context.Background()
	assert.Equal(t, scheduler.OutcomeRetry, s.RunOnce(ctx))
	assert.Equal(t, scheduler.OutcomeRetry, s.RunOnce(ctx))
	assert.Equal(t, scheduler.OutcomeFailure, s.RunOnce(ctx), "the retry budget is spent")

	// The failure resets the streak; the next failing run retries again.
	assert.Equal(t, scheduler.OutcomeRetry, s.RunOnce(ctx))
}

func TestRunOnce_SuccessResetsRetryStreak(t *testing.T) {
	fail := true
	syncer := &fakeSyncer{syncFn: func(context.Context) error {
		if fail {
			return fmt.Errorf("upstream down")
		}
		return nil
	}}
	s := newTestScheduler(syncer, defaultFakeSettings(), &fakeNotifier{}, scheduler.Config{
		RetryDelay: time.Hour,
		MaxRetries: 1,
	})

	ctx := context.Background()
	assert.Equal(t, scheduler.OutcomeRetry, s.RunOnce(ctx))

	fail = false
	assert.Equal(t, scheduler.OutcomeSuccess, s.RunOnce(ctx))

	fail = true
	assert.Equal(t, scheduler.OutcomeRetry, s.RunOnce(ctx), "a success restores the full retry budget")
}

func TestRunOnce_PanicYieldsFailure(t *testing.T) {
	syncer := &fakeSyncer{syncFn: func(context.Context) error {
		panic("boom")
	}}
	s := newTestScheduler(syncer, defaultFakeSettings(), &fakeNotifier{}, scheduler.Config{})

	var outcome scheduler.Outcome
	require.NotPanics(t, func() { outcome = s.RunOnce(context.Background()) })
	assert.Equal(t, scheduler.OutcomeFailure, outcome)
}

func TestRunOnce_SettingsReadFailure(t *testing.T) {
	settings := defaultFakeSettings()
	settings.autoUpdateErr = fmt.Errorf("redis down")
	s := newTestScheduler(&fakeSyncer{}, settings, &fakeNotifier{}, scheduler.Config{})

	outcome := s.RunOnce(context.Background())
	assert.Equal(t, scheduler.OutcomeFailure, outcome)
}

func TestStart_IsIdempotent(t *testing.T) {
	settings := defaultFakeSettings()
	s := newTestScheduler(&fakeSyncer{}, settings, &fakeNotifier{}, scheduler.Config{})
	defer s.Stop()

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "a second Start keeps the existing job")
}

func TestStart_IntervalReadFailure(t *testing.T) {
	settings := defaultFakeSettings()
	settings.intervalErr = fmt.Errorf("redis down")
	s := newTestScheduler(&fakeSyncer{}, settings, &fakeNotifier{}, scheduler.Config{})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading update interval")
}

func TestScheduledJob_Runs(t *testing.T) {
	done := make(chan struct{})
	syncer := &fakeSyncer{syncFn: func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}}
	settings := defaultFakeSettings()
	settings.interval = 50 * time.Millisecond
	s := newTestScheduler(syncer, settings, &fakeNotifier{}, scheduler.Config{})
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job never ran")
	}
}
