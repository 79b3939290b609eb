package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/elonfeng/tuberate/internal/config"
	"github.com/elonfeng/tuberate/internal/logging"
	"github.com/elonfeng/tuberate/internal/metrics"
	"github.com/elonfeng/tuberate/internal/scheduler"
	"github.com/elonfeng/tuberate/internal/store"
	"github.com/elonfeng/tuberate/pkg/alert"
	"github.com/elonfeng/tuberate/pkg/analyzer"
	"github.com/elonfeng/tuberate/pkg/sentiment"
	"github.com/elonfeng/tuberate/pkg/server"
	"github.com/elonfeng/tuberate/pkg/textnorm"
	"github.com/elonfeng/tuberate/pkg/youtube"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app holds the components shared by the commands that rate videos.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	db       *store.SQLiteStore
	analyzer *analyzer.Analyzer
}

func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	normalizer, err := textnorm.New()
	if err != nil {
		return nil, fmt.Errorf("load sentence model: %w", err)
	}

	clientOpts := []youtube.Option{
		youtube.WithRequestTimeout(cfg.YouTube.ParseRequestTimeout()),
		youtube.WithRateLimit(cfg.YouTube.RequestsPerSecond, cfg.YouTube.Burst),
		youtube.WithCircuitBreaker(cfg.YouTube.BreakerFailures, cfg.YouTube.ParseBreakerCooldown()),
		youtube.WithObserver(m),
	}
	if cfg.YouTube.BaseURL != "" {
		clientOpts = append(clientOpts, youtube.WithBaseURL(cfg.YouTube.BaseURL))
	}
	client := youtube.NewClient(cfg.YouTube.APIKey, clientOpts...)

	a := &app{cfg: cfg, logger: logger, registry: registry}

	opts := []analyzer.Option{
		analyzer.WithLogger(logger),
		analyzer.WithObserver(m),
		analyzer.WithMaxPages(cfg.YouTube.MaxPages),
	}
	if cfg.History.Enabled {
		db, err := store.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.db = db
		opts = append(opts, analyzer.WithRecorder(db))
	}

	a.analyzer = analyzer.New(client, client, normalizer, sentiment.NewLexicon(), opts...)
	return a, nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *app) server(port int) *server.Server {
	if port == 0 {
		port = a.cfg.Server.Port
	}
	opts := []server.Option{
		server.WithPort(port),
		server.WithAnalysisTimeout(a.cfg.Server.ParseAnalysisTimeout()),
		server.WithMetrics(metrics.Handler(a.registry)),
		server.WithLogger(a.logger),
	}
	if a.db != nil {
		opts = append(opts, server.WithHistory(a.db))
	}
	return server.New(a.analyzer, opts...)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runRate(ctx context.Context, input string, jsonOutput, showComments bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Server.ParseAnalysisTimeout())
	defer cancel()

	res, err := a.analyzer.Run(ctx, input)
	if err != nil {
		return errors.New(analyzer.UserMessage(err))
	}

	if jsonOutput {
		if !showComments {
			res.Comments = nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Title:    %s\n", res.Video.Title)
	fmt.Printf("URL:      %s\n", youtube.WatchURL(res.Video.ID))
	fmt.Printf("Rating:   %.2f / 5.00\n", res.Rating)
	fmt.Printf("Comments: %d (%d opinionated)\n", len(res.Comments), res.Stats.Included)

	if !showComments {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCOMPOUND\tPOS\tNEG\tAUTHOR\tTEXT")
	for _, c := range res.Comments {
		fmt.Fprintf(w, "%d\t%+.3f\t%.3f\t%.3f\t%s\t%s\n",
			c.ID, c.Score.Compound, c.Score.Positive, c.Score.Negative, c.Author, truncate(c.Text, 60))
	}
	return w.Flush()
}

func runHistory(ctx context.Context, videoID string, limit int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	analyses, err := db.ListAnalyses(ctx, store.ListOpts{VideoID: videoID, Limit: limit})
	if err != nil {
		return fmt.Errorf("list analyses: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analyses)
	}

	if len(analyses) == 0 {
		fmt.Println("no ratings recorded (try: tuberate rate <youtube-url>)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RATING\tCOMMENTS\tVIDEO\tTITLE\tANALYZED")
	for _, a := range analyses {
		fmt.Fprintf(w, "%.2f\t%d\t%s\t%s\t%s\n",
			a.Rating, a.CommentCount, a.VideoID, truncate(a.Title, 50),
			a.AnalyzedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runServe(ctx context.Context, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.server(port).ListenAndServe(ctx)
}

func runWatch(ctx context.Context, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Watch.Videos) == 0 {
		return errors.New("watch.videos is empty: nothing to watch")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var history scheduler.History
	if a.db != nil {
		history = a.db
	}

	sched := scheduler.New(a.analyzer, history, buildAlertManager(cfg), scheduler.Config{
		Videos:     cfg.Watch.Videos,
		Interval:   cfg.Watch.ParseInterval(),
		Timeout:    cfg.Server.ParseAnalysisTimeout(),
		AlertBelow: cfg.Watch.AlertBelow,
	}, a.logger)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("scheduler error", "error", err)
		}
	}()

	return a.server(port).ListenAndServe(ctx)
}

// truncate collapses whitespace and cuts s to n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
