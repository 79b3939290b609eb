// Package scheduler re-rates a fixed list of videos on an interval and
// raises an alert when a rating drops below the configured floor.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/elonfeng/tuberate/internal/store"
	"github.com/elonfeng/tuberate/pkg/alert"
	"github.com/elonfeng/tuberate/pkg/analyzer"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

// Rater runs one analysis. *analyzer.Analyzer implements it.
type Rater interface {
	Run(ctx context.Context, rawInput string) (*analyzer.Result, error)
}

// History returns the most recent recorded analysis of a video, or
// store.ErrNotFound.
type History interface {
	LatestForVideo(ctx context.Context, videoID string) (*store.Analysis, error)
}

// Broadcaster fans a notification out to every destination.
type Broadcaster interface {
	HasNotifiers() bool
	Broadcast(ctx context.Context, n *alert.Notification) error
}

// Scheduler runs the periodic watch loop.
type Scheduler struct {
	rater      Rater
	history    History
	alerts     Broadcaster
	videos     []string
	interval   time.Duration
	timeout    time.Duration
	alertBelow float64
	clock      clockwork.Clock
	logger     *slog.Logger

	// last holds ratings seen by this process, used when history is off.
	last map[string]float64
	// alerted records whether the current below-floor streak of a video has
	// been delivered. Videos absent here fall back to the previous rating.
	alerted map[string]bool
}

// Config holds the watch settings.
type Config struct {
	Videos     []string
	Interval   time.Duration
	Timeout    time.Duration
	AlertBelow float64
	// Clock drives the ticker. Defaults to the real clock.
	Clock clockwork.Clock
}

// New creates a new scheduler. history may be nil.
func New(rater Rater, history History, alerts Broadcaster, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		rater:      rater,
		history:    history,
		alerts:     alerts,
		videos:     normalizeVideos(cfg.Videos, logger),
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
		alertBelow: cfg.AlertBelow,
		clock:      cfg.Clock,
		logger:     logger,
		last:       make(map[string]float64),
		alerted:    make(map[string]bool),
	}
}

// normalizeVideos accepts watch URLs or bare ids and returns ids.
func normalizeVideos(entries []string, logger *slog.Logger) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		id, err := youtube.ExtractVideoID(e)
		if err != nil {
			id, err = youtube.ExtractVideoID(youtube.WatchURL(e))
		}
		if err != nil {
			logger.Warn("skipping watch entry", "entry", e, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Videos returns the ids being watched.
func (s *Scheduler) Videos() []string {
	return s.videos
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("watch started", "videos", len(s.videos), "interval", s.interval, "alert_below", s.alertBelow)
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watch stopped")
			return ctx.Err()
		case <-ticker.Chan():
			s.RunOnce(ctx)
		}
	}
}

// RunOnce rates every watched video once. Failures are logged and the
// remaining videos still run.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, id := range s.videos {
		if ctx.Err() != nil {
			return
		}
		s.check(ctx, id)
	}
}

func (s *Scheduler) check(ctx context.Context, videoID string) {
	prev, hasPrev := s.previous(ctx, videoID)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.rater.Run(runCtx, youtube.WatchURL(videoID))
	cancel()
	if err != nil {
		s.logger.Warn("watch rating failed", "video_id", videoID, "error", err)
		return
	}
	s.last[videoID] = res.Rating

	if res.Rating >= s.alertBelow {
		s.alerted[videoID] = false
		return
	}
	delivered, known := s.alerted[videoID]
	if !known {
		delivered = hasPrev && prev < s.alertBelow
	}
	if delivered {
		s.logger.Debug("rating still below floor", "video_id", videoID, "rating", res.Rating)
		return
	}
	if s.alerts == nil || !s.alerts.HasNotifiers() {
		s.logger.Warn("rating below floor, no notifiers configured", "video_id", videoID, "rating", res.Rating)
		return
	}

	n := &alert.Notification{
		VideoID:      videoID,
		Title:        res.Video.Title,
		URL:          youtube.WatchURL(videoID),
		ThumbnailURL: res.Video.ThumbnailURL,
		Rating:       res.Rating,
		Threshold:    s.alertBelow,
		Opinionated:  res.Stats.Included,
	}
	if hasPrev {
		n.Previous = &prev
	}
	if err := s.alerts.Broadcast(ctx, n); err != nil {
		s.alerted[videoID] = false
		s.logger.Error("alert failed, retrying next run", "video_id", videoID, "error", err)
		return
	}
	s.alerted[videoID] = true
	s.logger.Info("alerted", "video_id", videoID, "rating", res.Rating)
}

// previous returns the last known rating, from history when available.
func (s *Scheduler) previous(ctx context.Context, videoID string) (float64, bool) {
	if s.history != nil {
		a, err := s.history.LatestForVideo(ctx, videoID)
		switch {
		case err == nil:
			return a.Rating, true
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("history lookup failed", "video_id", videoID, "error", err)
		}
	}
	r, ok := s.last[videoID]
	return r, ok
}
