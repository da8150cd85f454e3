package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux/internal/cli"
	"github.com/scalux/scalux/internal/presentation/tui"
	"github.com/scalux/scalux/pkg/adapters/yaml"
	"github.com/scalux/scalux/pkg/domain"
)

func newModesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List every mode with its option values",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), eng.Modes())
			}
			return render(cmd, tui.ModesMarkdown(eng.Tree(), eng.Selectors(), ""))
		},
	}
	cmd.Flags().Bool("json", false, "Print the modes as a JSON array")
	return cmd
}

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the compiled tree",
		Long:  `Prints the normalized definition as YAML, or the mirror (every leaf replaced by its mode) as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			format, _ := cmd.Flags().GetString("format")
			switch format {
			case "yaml":
				data, err := yaml.Encode(eng.Tree().Definition())
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			case "json":
				data, err := json.MarshalIndent(eng.Tree().Mirror(), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			return fmt.Errorf("unknown format %q (use yaml or json)", format)
		},
	}
	cmd.Flags().StringP("format", "f", "yaml", "Output format: yaml or json")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <mode>",
		Short: "Evaluate every option selector against a mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			values, err := eng.Classify(domain.Mode(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return cli.PrintJSON(out, values)
			}
			labels := make([]string, 0, len(values))
			for l := range values {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			for _, l := range labels {
				fmt.Fprintf(out, "%s=%s\n", l, values[l])
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the values as a JSON object")
	return cmd
}
