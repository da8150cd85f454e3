package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scalux/scalux"
	"github.com/scalux/scalux/internal/cli"
	"github.com/scalux/scalux/internal/config"
	"github.com/scalux/scalux/internal/presentation/tui"
)

// project is everything a command needs from the persistent flags.
type project struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scalux",
		Short:         "scalux is a hierarchical mode tree engine",
		Long:          `scalux compiles a tree of named modes and moves sessions between them with prefix (macro) and suffix (sub) rewrites.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().StringP("config", "c", "", "Project file (default ./"+config.DefaultFile+")")
	root.PersistentFlags().StringP("tree", "t", "", "Tree definition file, overrides the project file")
	root.PersistentFlags().String("store", "", "Session store driver: memory, file, bolt or redis")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(
		newValidateCmd(),
		newModesCmd(),
		newTreeCmd(),
		newClassifyCmd(),
		newMatchCmd(),
		newNextCmd(),
		newGraphCmd(),
		newSessionCmd(),
		newServeCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if cli.IsInterrupted(err) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadProject(cmd *cobra.Command) (*project, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if tree, _ := cmd.Flags().GetString("tree"); tree != "" {
		cfg.Tree = tree
	}
	if driver, _ := cmd.Flags().GetString("store"); driver != "" {
		cfg.Store.Driver = driver
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(cfg.Log.Level, debug)
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, logger: logger}, nil
}

// openEngine builds an engine without a session store, for read-only
// tree queries.
func openEngine(cmd *cobra.Command) (*scalux.Engine, *project, error) {
	p, err := loadProject(cmd)
	if err != nil {
		return nil, nil, err
	}
	eng, err := cli.NewEngine(p.cfg, nil, p.logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, p, nil
}

// openSessionEngine builds an engine backed by the configured store.
// The caller closes the returned persistence.
func openSessionEngine(cmd *cobra.Command, extra ...scalux.Option) (*scalux.Engine, *cli.Persistence, *project, error) {
	p, err := loadProject(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := cli.OpenStore(p.cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := cli.NewEngine(p.cfg, store, p.logger, extra...)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	return eng, store, p, nil
}

// render prints markdown through the terminal-aware renderer.
func render(cmd *cobra.Command, md string) error {
	out := cmd.OutOrStdout()
	r, err := tui.RendererFor(out)
	if err != nil {
		return err
	}
	s, err := r(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, s)
	return err
}
