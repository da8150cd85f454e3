package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux/internal/presentation/graph"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the tree as a Mermaid diagram",
		Long:  `Outputs a Mermaid flowchart (graph TD) of the tree. With --session, the session's current mode and history are highlighted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			if sessionID == "" {
				eng, _, err := openEngine(cmd)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Tree(), nil))
				return nil
			}

			eng, store, _, err := openSessionEngine(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			state, err := eng.Sessions().Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", sessionID, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Tree(), graph.OverlayFromState(state)))
			return nil
		},
	}
	cmd.Flags().StringP("session", "s", "", "Highlight the state of this session")
	return cmd
}
