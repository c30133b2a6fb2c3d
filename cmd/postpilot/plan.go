// Package main planning commands.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func planCmd() *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "plan <goal>",
		Short: "Turn a goal into typed work steps",
		Long: `Ask the planner for an ordered step plan. Without model access the
fixed fallback plan is returned.

Examples:
  postpilot plan "launch the spring collection"
  postpilot plan --enqueue "launch the spring collection"`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := getApp()
			goal := args[0]
			ctx := context.Background()

			if enqueue {
				job, err := a.dispatcher.EnqueuePlan(ctx, goal)
				if err != nil {
					fatalError(err)
				}
				fmt.Printf("PLAN ENQUEUED: %s\n", job.ID)
				fmt.Println("  Run 'postpilot worker' to process it,")
				fmt.Printf("  then 'postpilot job %s' to inspect the fan-out.\n", job.ID)
				return
			}

			plan := a.planner.Plan(ctx, goal)
			fmt.Print(a.out.Plan(plan))
		},
	}

	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "host the plan on the queue instead of printing it")
	return cmd
}
