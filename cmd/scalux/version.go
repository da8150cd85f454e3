package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of scalux",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scalux version %s\n", strings.TrimSpace(scalux.Version))
		},
	}
}
