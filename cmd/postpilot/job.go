// Package main queue job inspection commands.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and manage queue jobs",
	}

	showCmd := &cobra.Command{
		Use:   "show <job_id>",
		Short: "Show a job's state, result and failure reason",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := getApp()

			job, err := a.queue.Get(context.Background(), args[0])
			if err != nil {
				fatalError(err)
			}
			fmt.Print(a.out.Job(job))
		},
	}

	requeueCmd := &cobra.Command{
		Use:   "requeue <job_id>",
		Short: "Force a stuck job back to queued",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := getApp()

			if err := a.queue.Requeue(context.Background(), args[0]); err != nil {
				fatalError(err)
			}
			fmt.Printf("REQUEUED: %s\n", args[0])
		},
	}

	cmd.AddCommand(showCmd, requeueCmd)
	return cmd
}
