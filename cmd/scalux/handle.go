package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux/pkg/domain"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <macro|sub> <path> <mode>",
		Short: "Test whether a mode starts (macro) or ends (sub) with a path",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			h, err := eng.Tree().Handle(domain.PathKind(args[0]), args[1])
			if err != nil {
				return err
			}
			mode, err := eng.Tree().Parse(args[2])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, h.Match(mode))
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				fmt.Fprintf(out, "alternatives: %s\n", strings.Join(h.Alternatives(), ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "Also print the paths the handle can rewrite to")
	return cmd
}

func newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next <macro|sub> <path> <replacement> <mode>",
		Short: "Compute the mode reached by rewriting a prefix or suffix",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			h, err := eng.Tree().Handle(domain.PathKind(args[0]), args[1])
			if err != nil {
				return err
			}
			next, err := h.Next(args[2], domain.Mode(args[3]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}
