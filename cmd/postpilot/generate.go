// Package main generation agent command.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/domain"
)

func generateCmd() *cobra.Command {
	var inputsJSON string

	cmd := &cobra.Command{
		Use:   "generate <kind> <description>",
		Short: "Run one generation agent directly",
		Long: `Run a generation agent without going through the queue. Kind is one
of: code, frontend, integration, content.

Examples:
  postpilot generate code "add a Slack notification tool"
  postpilot generate content "spring promo post" --inputs '{"tone":"bold"}'`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			a := getApp()
			kind := domain.StepType(args[0])

			var inputs map[string]any
			if inputsJSON != "" {
				if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
					fatalError(fmt.Errorf("parse --inputs: %w", err))
				}
			}

			result, err := a.generator.Generate(context.Background(), kind, args[1], inputs)
			if err != nil {
				fatalError(err)
			}
			fmt.Print(a.out.GenerateResult(result))
		},
	}

	cmd.Flags().StringVar(&inputsJSON, "inputs", "", "optional JSON object of structured inputs")
	return cmd
}
