package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronosync/go-chronosync/cmd"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			v := cmd.Version
			if v == "" {
				v = "dev"
			}
			_, err := fmt.Fprintf(c.OutOrStdout(), "%s+%s+%s\n", v, cmd.Commit, cmd.Branch)
			return err
		},
	}
}
