package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalOptions struct {
	configPath string
	logLevel   string
	dryRun     bool
	repeat     int
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		exitErr(err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "macaway",
		Short: "Record keyboard and mouse macros with a hotkey and play them back",
		Long: "Without a subcommand macaway runs interactively: the start hotkey records " +
			"until the stop hotkey, then the recording is played back straight away.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfigPath(), "path to YAML config")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace|debug|info|warn|error); overrides the config")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "log synthesized input instead of sending it")
	flags.IntVar(&opts.repeat, "repeat", 0, "play each recording this many times")

	root.AddCommand(newRecordCmd(opts))
	root.AddCommand(newPlayCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "macaway %s\n", version)
			return err
		},
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "macaway", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "macaway", "config.yaml")
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
