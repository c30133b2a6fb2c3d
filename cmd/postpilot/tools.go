// Package main tool catalogue command.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tool catalogue",
		Run: func(cmd *cobra.Command, args []string) {
			a := getApp()

			describe := func(name string) string {
				t, err := a.catalogue.Get(name)
				if err != nil {
					return ""
				}
				return t.Description()
			}
			fmt.Print(a.out.ToolCatalogue(a.catalogue.Names(), describe))
		},
	}
}
