package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux/internal/cli"
	"github.com/scalux/scalux/internal/validator"
	"github.com/scalux/scalux/pkg/adapters/file"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [tree-file]",
		Short: "Check the tree and option definitions",
		Long:  `Compiles the tree and the configured options, reporting every error at once along with warnings about nodes and options that can never make a difference.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			path := p.cfg.Tree
			if len(args) > 0 {
				path = args[0]
			}

			loader, err := file.NewLoader(path, file.WithLogger(p.logger))
			if err != nil {
				return err
			}
			report := validator.Load(cmd.Context(), loader, p.cfg.Options)

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				if err := cli.PrintJSON(out, report); err != nil {
					return err
				}
				return report.Err()
			}

			for _, problem := range report.Problems {
				fmt.Fprintln(out, problem)
			}
			if err := report.Err(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(out, "Tree is valid! ✅ (%d modes)\n", report.Modes)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	return cmd
}
