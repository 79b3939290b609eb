// Package analyzer runs the rating pipeline for one video: id extraction,
// validation, comment retrieval, normalization, scoring and rating.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/tuberate/pkg/rating"
	"github.com/elonfeng/tuberate/pkg/sentiment"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

// VideoLookup returns video metadata, or youtube.ErrVideoNotFound.
type VideoLookup interface {
	VideoDetails(ctx context.Context, videoID string) (*youtube.VideoDetails, error)
}

// TextNormalizer prepares raw comment text for scoring.
type TextNormalizer interface {
	Normalize(text string) string
}

// Recorder persists a finished analysis.
type Recorder interface {
	RecordAnalysis(ctx context.Context, res *Result) error
}

// Observer is told how each run ended.
type Observer interface {
	ObserveAnalysis(kind Kind, elapsed time.Duration, res *Result)
}

// Result is a successful analysis.
type Result struct {
	Video      youtube.VideoDetails   `json:"video"`
	Rating     float64                `json:"rating"`
	Stats      rating.AggregateStats  `json:"stats"`
	Comments   []rating.ScoredComment `json:"comments,omitempty"`
	AnalyzedAt time.Time              `json:"analyzed_at"`
}

// Analyzer wires the pipeline stages together.
type Analyzer struct {
	videos     VideoLookup
	fetcher    *youtube.Fetcher
	normalizer TextNormalizer
	scorer     sentiment.Scorer
	recorder   Recorder
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRecorder stores every successful analysis.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithObserver reports every run, failed or not.
func WithObserver(o Observer) Option {
	return func(a *Analyzer) { a.observer = o }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithMaxPages caps the number of comment pages fetched per video.
func WithMaxPages(n int) Option {
	return func(a *Analyzer) { a.fetcher.MaxPages = n }
}

// New creates a new analyzer.
func New(videos VideoLookup, comments youtube.CommentLister, normalizer TextNormalizer, scorer sentiment.Scorer, opts ...Option) *Analyzer {
	a := &Analyzer{
		videos:     videos,
		fetcher:    &youtube.Fetcher{Lister: comments},
		normalizer: normalizer,
		scorer:     scorer,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run rates the video named by rawInput. Every failure is returned as an
// error; UserMessage turns it into displayable text. No partial result is
// ever returned.
func (a *Analyzer) Run(ctx context.Context, rawInput string) (*Result, error) {
	start := a.now()
	res, err := a.run(ctx, rawInput)

	kind := Classify(err)
	if a.observer != nil {
		a.observer.ObserveAnalysis(kind, a.now().Sub(start), res)
	}
	if err != nil {
		a.logger.Warn("analysis failed", "input", rawInput, "kind", kind, "error", err)
		return nil, err
	}

	a.logger.Info("analysis complete",
		"video_id", res.Video.ID,
		"rating", res.Rating,
		"comments", len(res.Comments),
		"opinionated", res.Stats.Included,
		"elapsed", a.now().Sub(start))

	if a.recorder != nil {
		if err := a.recorder.RecordAnalysis(ctx, res); err != nil {
			a.logger.Error("record analysis", "video_id", res.Video.ID, "error", err)
		}
	}
	return res, nil
}

func (a *Analyzer) run(ctx context.Context, rawInput string) (*Result, error) {
	videoID, err := youtube.ExtractVideoID(rawInput)
	if err != nil {
		return nil, err
	}

	details, err := a.videos.VideoDetails(ctx, videoID)
	if err != nil {
		if errors.Is(err, youtube.ErrVideoNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidIdentifier, videoID)
		}
		return nil, &youtube.FetchError{VideoID: videoID, Op: "videos", Err: err}
	}

	records, err := a.fetcher.Fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}

	scores := make(map[int]sentiment.PolarityScore, len(records))
	for _, r := range records {
		scores[r.ID] = a.scorer.Score(a.normalizer.Normalize(r.Text))
	}

	scored, err := rating.Join(records, scores)
	if err != nil {
		return nil, fmt.Errorf("join scores for %s: %w", videoID, err)
	}

	value, stats, err := rating.Compute(scored)
	if err != nil {
		return nil, fmt.Errorf("rate %s: %w", videoID, err)
	}

	return &Result{
		Video:      *details,
		Rating:     value,
		Stats:      stats,
		Comments:   scored,
		AnalyzedAt: a.now().UTC(),
	}, nil
}
