package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/tuberate/pkg/analyzer"
	"github.com/elonfeng/tuberate/pkg/sentiment"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

// ErrNotFound is returned when a requested analysis does not exist.
var ErrNotFound = errors.New("analysis not found")

// Analysis is one recorded rating run.
type Analysis struct {
	ID           string    `db:"id" json:"id"`
	VideoID      string    `db:"video_id" json:"video_id"`
	Title        string    `db:"title" json:"title"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url"`
	Rating       float64   `db:"rating" json:"rating"`
	CompoundMean float64   `db:"compound_mean" json:"compound_mean"`
	PositiveMean float64   `db:"positive_mean" json:"positive_mean"`
	NegativeMean float64   `db:"negative_mean" json:"negative_mean"`
	CommentCount int       `db:"comment_count" json:"comment_count"`
	Opinionated  int       `db:"opinionated_count" json:"opinionated_count"`
	AnalyzedAt   time.Time `db:"analyzed_at" json:"analyzed_at"`
}

// CommentScore is a stored comment with its polarity score.
type CommentScore struct {
	AnalysisID string `db:"analysis_id" json:"-"`
	youtube.CommentRecord
	sentiment.PolarityScore
}

// ListOpts controls analysis listing.
type ListOpts struct {
	VideoID string
	Since   time.Time
	Limit   int
}

// Store is the persistence interface.
type Store interface {
	SaveAnalysis(ctx context.Context, a *Analysis, comments []CommentScore) error
	GetAnalysis(ctx context.Context, id string) (*Analysis, error)
	ListAnalyses(ctx context.Context, opts ListOpts) ([]Analysis, error)
	ListCommentScores(ctx context.Context, analysisID string) ([]CommentScore, error)
	LatestForVideo(ctx context.Context, videoID string) (*Analysis, error)
	RecordAnalysis(ctx context.Context, res *analyzer.Result) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordAnalysis stores a finished analyzer run under a fresh id.
func (s *SQLiteStore) RecordAnalysis(ctx context.Context, res *analyzer.Result) error {
	a := &Analysis{
		ID:           uuid.NewString(),
		VideoID:      res.Video.ID,
		Title:        res.Video.Title,
		ThumbnailURL: res.Video.ThumbnailURL,
		Rating:       res.Rating,
		CompoundMean: res.Stats.CompoundMean,
		PositiveMean: res.Stats.PositiveMean,
		NegativeMean: res.Stats.NegativeMean,
		CommentCount: len(res.Comments),
		Opinionated:  res.Stats.Included,
		AnalyzedAt:   res.AnalyzedAt,
	}

	comments := make([]CommentScore, len(res.Comments))
	for i, c := range res.Comments {
		comments[i] = CommentScore{CommentRecord: c.CommentRecord, PolarityScore: c.Score}
	}
	return s.SaveAnalysis(ctx, a, comments)
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *Analysis, comments []CommentScore) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save analysis: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO analyses (id, video_id, title, thumbnail_url, rating, compound_mean, positive_mean,
			negative_mean, comment_count, opinionated_count, analyzed_at)
		VALUES (:id, :video_id, :title, :thumbnail_url, :rating, :compound_mean, :positive_mean,
			:negative_mean, :comment_count, :opinionated_count, :analyzed_at)
	`, a)
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", a.ID, err)
	}

	for i := range comments {
		comments[i].AnalysisID = a.ID
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO comment_scores (analysis_id, position, author, like_count, text, neg, neu, pos, compound)
			VALUES (:analysis_id, :position, :author, :like_count, :text, :neg, :neu, :pos, :compound)
		`, &comments[i])
		if err != nil {
			return fmt.Errorf("insert comment %d of analysis %s: %w", comments[i].ID, a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit analysis %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	var a Analysis
	err := s.db.GetContext(ctx, &a, "SELECT * FROM analyses WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return &a, nil
}

func (s *SQLiteStore) LatestForVideo(ctx context.Context, videoID string) (*Analysis, error) {
	var a Analysis
	err := s.db.GetContext(ctx, &a,
		"SELECT * FROM analyses WHERE video_id = ? ORDER BY analyzed_at DESC LIMIT 1", videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest analysis for %s: %w", videoID, err)
	}
	return &a, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, opts ListOpts) ([]Analysis, error) {
	query := "SELECT * FROM analyses WHERE 1=1"
	var args []any

	if opts.VideoID != "" {
		query += " AND video_id = ?"
		args = append(args, opts.VideoID)
	}
	if !opts.Since.IsZero() {
		query += " AND analyzed_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY analyzed_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var analyses []Analysis
	if err := s.db.SelectContext(ctx, &analyses, query, args...); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return analyses, nil
}

func (s *SQLiteStore) ListCommentScores(ctx context.Context, analysisID string) ([]CommentScore, error) {
	var comments []CommentScore
	err := s.db.SelectContext(ctx, &comments,
		"SELECT * FROM comment_scores WHERE analysis_id = ? ORDER BY position", analysisID)
	if err != nil {
		return nil, fmt.Errorf("list comment scores %s: %w", analysisID, err)
	}
	return comments, nil
}
