package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/tuberate/internal/store"
	"github.com/elonfeng/tuberate/pkg/alert"
	"github.com/elonfeng/tuberate/pkg/analyzer"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

type fakeRater struct {
	ratings map[string][]float64
	errs    map[string]error
	inputs  []string
}

func (f *fakeRater) Run(_ context.Context, raw string) (*analyzer.Result, error) {
	f.inputs = append(f.inputs, raw)
	id, err := youtube.ExtractVideoID(raw)
	if err != nil {
		return nil, err
	}
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	seq := f.ratings[id]
	r := seq[0]
	if len(seq) > 1 {
		f.ratings[id] = seq[1:]
	}
	return &analyzer.Result{
		Video:  youtube.VideoDetails{ID: id, Title: "title " + id},
		Rating: r,
	}, nil
}

type fakeHistory struct {
	latest map[string]float64
	err    error
}

func (f *fakeHistory) LatestForVideo(_ context.Context, id string) (*store.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.latest[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Analysis{VideoID: id, Rating: r}, nil
}

type fakeAlerts struct {
	sent []*alert.Notification
	err  error
	// errs are returned by successive calls before falling back to err.
	errs []error
}

func (f *fakeAlerts) HasNotifiers() bool { return true }

func (f *fakeAlerts) Broadcast(_ context.Context, n *alert.Notification) error {
	f.sent = append(f.sent, n)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeVideos(t *testing.T) {
	s := New(&fakeRater{}, nil, nil, Config{
		Videos: []string{"https://www.youtube.com/watch?v=abc&t=3", "def", "not valid!"},
	}, quietLogger())
	assert.Equal(t, []string{"abc", "def"}, s.Videos())
}

func TestAlertsOnlyWhenCrossingBelow(t *testing.T) {
	rater := &fakeRater{ratings: map[string][]float64{"abc": {3.0, 2.0, 1.5, 4.0, 1.0}}}
	alerts := &fakeAlerts{}
	s := New(rater, nil, alerts, Config{Videos: []string{"abc"}, AlertBelow: 2.5}, quietLogger())
	ctx := context.Background()

	s.RunOnce(ctx) // 3.0: above
	assert.Empty(t, alerts.sent)

	s.RunOnce(ctx) // 2.0: crossed
	require.Len(t, alerts.sent, 1)
	n := alerts.sent[0]
	assert.Equal(t, "abc", n.VideoID)
	assert.Equal(t, "title abc", n.Title)
	assert.Equal(t, youtube.WatchURL("abc"), n.URL)
	assert.InDelta(t, 2.0, n.Rating, 1e-9)
	assert.InDelta(t, 2.5, n.Threshold, 1e-9)
	require.NotNil(t, n.Previous)
	assert.InDelta(t, 3.0, *n.Previous, 1e-9)

	s.RunOnce(ctx) // 1.5: still below
	assert.Len(t, alerts.sent, 1)

	s.RunOnce(ctx) // 4.0: recovered
	s.RunOnce(ctx) // 1.0: crossed again
	assert.Len(t, alerts.sent, 2)
}

func TestFailedAlertIsRetried(t *testing.T) {
	rater := &fakeRater{ratings: map[string][]float64{"abc": {3.0, 2.0, 1.5, 1.0}}}
	alerts := &fakeAlerts{errs: []error{errors.New("slack down")}}
	s := New(rater, nil, alerts, Config{Videos: []string{"abc"}, AlertBelow: 2.5}, quietLogger())
	ctx := context.Background()

	s.RunOnce(ctx) // 3.0: above
	s.RunOnce(ctx) // 2.0: crossed, delivery fails
	require.Len(t, alerts.sent, 1)

	s.RunOnce(ctx) // 1.5: retried and delivered
	require.Len(t, alerts.sent, 2)
	assert.InDelta(t, 1.5, alerts.sent[1].Rating, 1e-9)
	require.NotNil(t, alerts.sent[1].Previous)
	assert.InDelta(t, 2.0, *alerts.sent[1].Previous, 1e-9)

	s.RunOnce(ctx) // 1.0: already delivered
	assert.Len(t, alerts.sent, 2)
}

func TestFailedAlertIsRetriedWithHistory(t *testing.T) {
	rater := &fakeRater{ratings: map[string][]float64{"abc": {2.0, 1.5}}}
	history := &fakeHistory{latest: map[string]float64{"abc": 3.0}}
	alerts := &fakeAlerts{errs: []error{errors.New("webhook 500")}}
	s := New(rater, history, alerts, Config{Videos: []string{"abc"}, AlertBelow: 2.5}, quietLogger())
	ctx := context.Background()

	s.RunOnce(ctx)
	require.Len(t, alerts.sent, 1)

	// The recorder has stored the below-floor rating by now.
	history.latest["abc"] = 2.0
	s.RunOnce(ctx)
	assert.Len(t, alerts.sent, 2)
}

func TestFirstRatingBelowAlertsWithoutPrevious(t *testing.T) {
	rater := &fakeRater{ratings: map[string][]float64{"abc": {1.0}}}
	alerts := &fakeAlerts{}
	s := New(rater, nil, alerts, Config{Videos: []string{"abc"}, AlertBelow: 2.5}, quietLogger())

	s.RunOnce(context.Background())
	require.Len(t, alerts.sent, 1)
	assert.Nil(t, alerts.sent[0].Previous)
}

func TestHistoryProvidesPrevious(t *testing.T) {
	rater := &fakeRater{ratings: map[string][]float64{"abc": {1.0}, "def": {1.0}}}
	history := &fakeHistory{latest: map[string]float64{"abc": 2.0, "def": 4.5}}
	alerts := &fakeAlerts{}
	s := New(rater, history, alerts, Config{Videos: []string{"abc", "def"}, AlertBelow: 2.5}, quietLogger())

	s.RunOnce(context.Background())
	require.Len(t, alerts.sent, 1)
	assert.Equal(t, "def", alerts.sent[0].VideoID)
	assert.InDelta(t, 4.5, *alerts.sent[0].Previous, 1e-9)
}

func TestHistoryErrorFallsBackToMemory(t *testing.T) {
	rater := &fakeRater{ratings: map[string][]float64{"abc": {1.0, 1.0}}}
	history := &fakeHistory{err: errors.New("db locked")}
	alerts := &fakeAlerts{}
	s := New(rater, history, alerts, Config{Videos: []string{"abc"}, AlertBelow: 2.5}, quietLogger())

	s.RunOnce(context.Background())
	s.RunOnce(context.Background())
	assert.Len(t, alerts.sent, 1)
}

func TestFailedRatingIsSkipped(t *testing.T) {
	rater := &fakeRater{
		ratings: map[string][]float64{"def": {1.0}},
		errs:    map[string]error{"abc": youtube.ErrQuotaExhausted},
	}
	alerts := &fakeAlerts{}
	s := New(rater, nil, alerts, Config{Videos: []string{"abc", "def"}, AlertBelow: 2.5}, quietLogger())

	s.RunOnce(context.Background())
	assert.Equal(t, []string{youtube.WatchURL("abc"), youtube.WatchURL("def")}, rater.inputs)
	require.Len(t, alerts.sent, 1)
	assert.Equal(t, "def", alerts.sent[0].VideoID)
}

func TestRunStopsOnCancel(t *testing.T) {
	rater := &fakeRater{ratings: map[string][]float64{"abc": {4.0}}}
	s := New(rater, nil, &fakeAlerts{}, Config{Videos: []string{"abc"}, Interval: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type countingRater struct {
	calls atomic.Int32
}

func (c *countingRater) Run(_ context.Context, raw string) (*analyzer.Result, error) {
	c.calls.Add(1)
	return &analyzer.Result{Video: youtube.VideoDetails{ID: "abc"}, Rating: 4.0}, nil
}

func TestRunRatesOnEveryTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rater := &countingRater{}
	s := New(rater, nil, &fakeAlerts{}, Config{
		Videos:   []string{"abc"},
		Interval: 10 * time.Minute,
		Clock:    clock,
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return rater.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return rater.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
