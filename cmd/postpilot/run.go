// Package main tool-use loop command.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/agent"
)

func runCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Drive the bounded tool-use conversation for a goal",
		Long: `Run the tool-use loop: the model may call the registered campaign
tools until it answers with text or the turn budget runs out.

Examples:
  postpilot run "create a project for the spring launch with an Instagram account"
  postpilot run --scope "project 3" "draft and schedule tomorrow's post"`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := getApp()

			loop := agent.NewLoop(a.provider, a.catalogue, a.cfg.Model, a.cfg.MaxToolSteps)
			result, err := loop.Run(context.Background(), args[0], scope)
			if err != nil {
				fatalError(err)
			}
			fmt.Print(a.out.LoopResult(result))
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "extra context for the opening turn (e.g. the owning project)")
	return cmd
}
