package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/matchmaker/internal/simulate"
	"github.com/okian/matchmaker/pkg/logger"
)

var (
	simulateConfig   = simulate.DefaultConfig()
	simulateDeadline = 10 * time.Minute
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a running service with concurrent task traffic",
	Long: "Generates tasks from the service's live skill list, matches and assigns them, " +
		"updates progress, reassigns and completes a share, then verifies that assigned " +
		"employees are never Free and that the leaderboard agrees with performance records.",
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVarP(&simulateConfig.BaseURL, "url", "u", simulateConfig.BaseURL, "Base URL of the service")
	f.IntVarP(&simulateConfig.Tasks, "tasks", "n", simulateConfig.Tasks, "Number of tasks to create")
	f.IntVarP(&simulateConfig.Workers, "workers", "w", simulateConfig.Workers, "Concurrent task flows")
	f.DurationVar(&simulateConfig.Timeout, "timeout", simulateConfig.Timeout, "Per-request HTTP timeout")
	f.Float64Var(&simulateConfig.CompleteShare, "complete", simulateConfig.CompleteShare, "Fraction of tasks to complete")
	f.Float64Var(&simulateConfig.ReassignShare, "reassign", simulateConfig.ReassignShare, "Fraction of tasks to reassign")
	f.DurationVar(&simulateConfig.Settle, "settle", simulateConfig.Settle, "How long to wait for the leaderboard to converge")
	f.Uint64Var(&simulateConfig.Seed, "seed", 0, "Generator seed (0 picks one from the clock)")
	f.DurationVar(&simulateDeadline, "deadline", simulateDeadline, "Overall run deadline")
	f.BoolVarP(&simulateConfig.Verbose, "verbose", "v", false, "Log individual step failures")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	r, err := simulate.NewRunner(simulateConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, simulateDeadline)
	defer cancel()

	_, err = r.Run(ctx)
	return err
}
