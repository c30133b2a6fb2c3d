// Package main worker process commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/queue"
)

func workerCmd() *cobra.Command {
	var (
		withScheduler bool
		scanInterval  time.Duration
		pollInterval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the queue worker pools",
		Long: `Start the long-running worker process: one pool per job type with its
own concurrency limit, plus (optionally) the scheduler that publishes
due posts the queue missed.

Stops cleanly on SIGINT/SIGTERM.`,
		Run: func(cmd *cobra.Command, args []string) {
			a := getApp()

			workers, err := queue.NewWorkers(a.queue, a.dispatcher, nil, pollInterval)
			if err != nil {
				fatalError(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				fmt.Fprintln(os.Stderr, "shutting down")
				cancel()
			}()

			if withScheduler {
				go queue.NewScheduler(a.store, scanInterval).Run(ctx)
			}

			fmt.Fprintln(os.Stderr, "worker pools started")
			workers.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "also run the due-post scheduler")
	cmd.Flags().DurationVar(&scanInterval, "scan-interval", 5*time.Second, "scheduler scan interval")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "queue poll interval per worker slot")
	return cmd
}
