// Package server exposes the rating pipeline and the analysis history over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/elonfeng/tuberate/internal/store"
	"github.com/elonfeng/tuberate/pkg/analyzer"
	"github.com/elonfeng/tuberate/pkg/rating"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

const (
	maxBodyBytes = 64 << 10
	maxListLimit = 500
)

// Rater runs one analysis. *analyzer.Analyzer implements it.
type Rater interface {
	Run(ctx context.Context, rawInput string) (*analyzer.Result, error)
}

// History is the read side of the analysis store.
type History interface {
	GetAnalysis(ctx context.Context, id string) (*store.Analysis, error)
	ListAnalyses(ctx context.Context, opts store.ListOpts) ([]store.Analysis, error)
	ListCommentScores(ctx context.Context, analysisID string) ([]store.CommentScore, error)
}

// Server provides the HTTP API.
type Server struct {
	rater   Rater
	history History
	metrics http.Handler
	port    int
	timeout time.Duration
	logger  *slog.Logger

	inflight singleflight.Group
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the history endpoints.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithPort sets the listen port.
func WithPort(port int) Option {
	return func(s *Server) { s.port = port }
}

// WithAnalysisTimeout bounds one rating request.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new HTTP server.
func New(rater Rater, opts ...Option) *Server {
	s := &Server{
		rater:   rater,
		port:    8080,
		timeout: 2 * time.Minute,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/ratings", s.handleRatings)
	mux.HandleFunc("/api/v1/ratings/", s.handleRating)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleRate(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

type rateRequest struct {
	Input string `json:"input"`
}

type ratingResponse struct {
	Video        youtube.VideoDetails   `json:"video"`
	Rating       float64                `json:"rating"`
	Stats        rating.AggregateStats  `json:"stats"`
	CommentCount int                    `json:"comment_count"`
	AnalyzedAt   time.Time              `json:"analyzed_at"`
	Comments     []rating.ScoredComment `json:"comments,omitempty"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	input, err := readInput(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.rate(ctx, input)
	if err != nil {
		writeJSON(w, statusFor(analyzer.Classify(err)), map[string]string{"error": analyzer.UserMessage(err)})
		return
	}

	resp := ratingResponse{
		Video:        res.Video,
		Rating:       res.Rating,
		Stats:        res.Stats,
		CommentCount: len(res.Comments),
		AnalyzedAt:   res.AnalyzedAt,
	}
	if details, _ := strconv.ParseBool(r.URL.Query().Get("details")); details {
		resp.Comments = res.Comments
	}
	writeJSON(w, http.StatusOK, resp)
}

// rate runs one analysis, collapsing concurrent requests for the same video
// into a single run.
func (s *Server) rate(ctx context.Context, input string) (*analyzer.Result, error) {
	videoID, err := youtube.ExtractVideoID(input)
	if err != nil {
		return s.rater.Run(ctx, input)
	}

	v, err, shared := s.inflight.Do(videoID, func() (any, error) {
		return s.rater.Run(ctx, input)
	})
	if shared {
		s.logger.Debug("shared rating run", "video_id", videoID)
	}
	if err != nil {
		return nil, err
	}
	return v.(*analyzer.Result), nil
}

// readInput accepts a JSON body {"input": ...} or the form fields video_id
// and input.
func readInput(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req rateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", errors.New("invalid JSON body")
		}
		return req.Input, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", errors.New("invalid form body")
	}
	if v := r.PostForm.Get("video_id"); v != "" {
		return v, nil
	}
	return r.PostForm.Get("input"), nil
}

func statusFor(kind analyzer.Kind) int {
	switch kind {
	case analyzer.KindInvalidInputFormat:
		return http.StatusBadRequest
	case analyzer.KindInvalidIdentifier:
		return http.StatusNotFound
	case analyzer.KindAggregationUndefined:
		return http.StatusUnprocessableEntity
	case analyzer.KindFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}

	q := r.URL.Query()
	opts := store.ListOpts{VideoID: q.Get("video_id"), Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		opts.Limit = min(n, maxListLimit)
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		opts.Since = t
	}

	analyses, err := s.history.ListAnalyses(r.Context(), opts)
	if err != nil {
		s.logger.Error("list analyses", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load history"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  analyses,
		"count": len(analyses),
	})
}

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/ratings/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	a, err := s.history.GetAnalysis(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		s.logger.Error("get analysis", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load history"})
		return
	}

	comments, err := s.history.ListCommentScores(r.Context(), id)
	if err != nil {
		s.logger.Error("list comment scores", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load history"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analysis": a,
		"comments": comments,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
