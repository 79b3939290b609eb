package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tuberate",
		Short:         "Rate YouTube videos from the sentiment of their comments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(rateCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(watchCmd())

	return root
}

func rateCmd() *cobra.Command {
	var (
		jsonOutput   bool
		showComments bool
	)

	cmd := &cobra.Command{
		Use:   "rate <youtube-url>",
		Short: "Rate one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRate(cmd.Context(), args[0], jsonOutput, showComments)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&showComments, "comments", false, "include per-comment scores")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		videoID    string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded ratings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), videoID, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&videoID, "video", "", "only show this video id")
	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func watchCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-rate configured videos periodically and serve the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
