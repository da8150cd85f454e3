package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux/internal/cli"
	"github.com/scalux/scalux/internal/presentation/tui"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage persistent sessions",
		Long:  `Start sessions, move them between modes and inspect them. Sessions live in the store selected by the project file.`,
	}
	cmd.PersistentFlags().Bool("json", false, "Print states as JSON")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List all sessions",
			Args:  cobra.NoArgs,
			RunE: withSessions(func(cmd *cobra.Command, m *session.Manager, args []string) error {
				ids, err := m.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("error listing sessions: %w", err)
				}
				out := cmd.OutOrStdout()
				if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
					if ids == nil {
						ids = []string{}
					}
					return cli.PrintJSON(out, ids)
				}
				if len(ids) == 0 {
					fmt.Fprintln(out, "No active sessions found.")
					return nil
				}
				fmt.Fprintln(out, "Active Sessions:")
				for _, id := range ids {
					fmt.Fprintln(out, "- "+id)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "start <session-id> <mode>",
			Short: "Start (or restart) a session in a mode",
			Args:  cobra.ExactArgs(2),
			RunE: withSessions(func(cmd *cobra.Command, m *session.Manager, args []string) error {
				state, err := m.Start(cmd.Context(), args[0], domain.Mode(args[1]))
				if err != nil {
					return err
				}
				return printState(cmd, state)
			}),
		},
		&cobra.Command{
			Use:   "show <session-id>",
			Short: "Show the state of a session",
			Args:  cobra.ExactArgs(1),
			RunE: withSessions(func(cmd *cobra.Command, m *session.Manager, args []string) error {
				state, err := m.Load(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("error loading session '%s': %w", args[0], err)
				}
				return printState(cmd, state)
			}),
		},
		changeCmd("set <session-id> <mode>", "Move a session to a mode", 2,
			func(ctx context.Context, m *session.Manager, args []string) (*domain.Change, error) {
				return m.Set(ctx, args[0], domain.Mode(args[1]))
			}),
		changeCmd("macro <session-id> <prefix> <replacement>", "Rewrite the prefix of a session's mode", 3,
			func(ctx context.Context, m *session.Manager, args []string) (*domain.Change, error) {
				return m.ApplyMacro(ctx, args[0], args[1], args[2])
			}),
		changeCmd("sub <session-id> <suffix> <replacement>", "Rewrite the suffix of a session's mode", 3,
			func(ctx context.Context, m *session.Manager, args []string) (*domain.Change, error) {
				return m.ApplySub(ctx, args[0], args[1], args[2])
			}),
		changeCmd("undo <session-id>", "Return a session to its previous mode", 1,
			func(ctx context.Context, m *session.Manager, args []string) (*domain.Change, error) {
				return m.Undo(ctx, args[0])
			}),
		changeCmd("redo <session-id>", "Re-apply the last undone transition", 1,
			func(ctx context.Context, m *session.Manager, args []string) (*domain.Change, error) {
				return m.Redo(ctx, args[0])
			}),
		&cobra.Command{
			Use:   "rm <session-id>...",
			Short: "Remove one or more sessions",
			Args:  cobra.MinimumNArgs(1),
			RunE: withSessions(func(cmd *cobra.Command, m *session.Manager, args []string) error {
				out := cmd.OutOrStdout()
				failed := 0
				for _, id := range args {
					if err := m.Delete(cmd.Context(), id); err != nil {
						fmt.Fprintf(out, "Error removing '%s': %v\n", id, err)
						failed++
						continue
					}
					fmt.Fprintf(out, "Removed session '%s'\n", id)
				}
				if failed > 0 {
					return fmt.Errorf("failed to remove %d sessions", failed)
				}
				return nil
			}),
		},
	)
	return cmd
}

type sessionRunFunc func(cmd *cobra.Command, m *session.Manager, args []string) error

// withSessions opens the configured store for the duration of one command.
func withSessions(fn sessionRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, store, _, err := openSessionEngine(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, eng.Sessions(), args)
	}
}

func changeCmd(use, short string, nargs int, apply func(context.Context, *session.Manager, []string) (*domain.Change, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: withSessions(func(cmd *cobra.Command, m *session.Manager, args []string) error {
			change, err := apply(cmd.Context(), m, args)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), change)
			}
			return printState(cmd, change.State)
		}),
	}
}

func printState(cmd *cobra.Command, state *domain.State) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), state)
	}
	return render(cmd, tui.StateMarkdown(state))
}
