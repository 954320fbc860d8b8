package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cororun/internal/app"
	"cororun/pkg/systemd"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler until SIGINT or SIGTERM",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringSlice("spawn", []string{"heartbeat"}, "built-in routines to start (available: heartbeat, stats)")
	runCmd.Flags().Duration("stop-timeout", 10*time.Second, "upper bound for graceful shutdown")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	spawn, _ := cmd.Flags().GetStringSlice("spawn")
	stopTimeout, _ := cmd.Flags().GetDuration("stop-timeout")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a, err := app.New(configPath(cmd))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	for _, name := range spawn {
		if _, err := a.Spawn(ctx, name); err != nil {
			_ = a.Stop(context.Background(), app.StopFatalError)
			return fmt.Errorf("spawn: %w", err)
		}
	}

	var sd systemd.Notifier
	_, _ = sd.Ready(fmt.Sprintf("running %d routine(s)", len(spawn)))
	go func() { _ = systemd.Watchdog(ctx, a.Alive) }()

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	_, _ = sd.Stopping(string(reason))
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}
