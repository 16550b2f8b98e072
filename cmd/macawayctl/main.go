package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Elec3137/macaway/internal/config"
	"github.com/Elec3137/macaway/internal/control/client"
	"github.com/Elec3137/macaway/internal/ui/tui"
)

// controlClient is the control API used by the subcommands.
type controlClient interface {
	Status(ctx context.Context) (client.EngineStatus, error)
	Trigger(ctx context.Context) (client.TriggerResult, error)
	Exit(ctx context.Context) error
	Macros(ctx context.Context) (client.MacroList, error)
	Reload(ctx context.Context) error
}

type dialFunc func(socket string) (controlClient, error)

func dialSocket(socket string) (controlClient, error) {
	cli, err := client.New(socket)
	if err != nil {
		return nil, err
	}
	return cli, nil
}

func main() {
	if err := newRootCmd(dialSocket).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	socket  string
	timeout time.Duration
	dial    dialFunc
}

// connect returns a client and a context bounded by --timeout.
func (o *rootOptions) connect(parent context.Context) (controlClient, context.Context, context.CancelFunc, error) {
	cli, err := o.dial(o.socket)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create client: %w", err)
	}
	if parent == nil {
		parent = context.Background()
	}
	if o.timeout <= 0 {
		ctx, cancel := context.WithCancel(parent)
		return cli, ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(parent, o.timeout)
	return cli, ctx, cancel, nil
}

func newRootCmd(dial dialFunc) *cobra.Command {
	opts := &rootOptions{dial: dial}
	root := &cobra.Command{
		Use:           "macawayctl",
		Short:         "Control a running macaway daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.socket, "socket", "", "path to macaway control socket")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "control request timeout")

	root.AddCommand(
		newStatusCmd(opts),
		newTriggerCmd(opts),
		newExitCmd(opts),
		newMacrosCmd(opts),
		newReloadCmd(opts),
		newWatchCmd(opts),
		newCheckCmd(),
	)
	return root
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon state, hotkeys and recent cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, ctx, cancel, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			status, err := cli.Status(ctx)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), tui.Format(status))
			return err
		},
	}
}

func newTriggerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Press the start hotkey remotely (stops a running recording)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, ctx, cancel, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			result, err := cli.Trigger(ctx)
			if err != nil {
				return err
			}
			if result.State == "recording" {
				fmt.Fprintln(cmd.OutOrStdout(), "Recording stopped")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Recording started")
			return nil
		},
	}
}

func newExitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "Ask the daemon to quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, ctx, cancel, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			if err := cli.Exit(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Exit requested")
			return nil
		},
	}
}

func newMacrosCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "macros",
		Short: "List macros saved in the daemon's recording directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, ctx, cancel, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			list, err := cli.Macros(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list.Macros) == 0 {
				fmt.Fprintln(out, "No macros saved")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
			for _, m := range list.Macros {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Name, m.Size, m.Modified.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newReloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Trigger a live config reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, ctx, cancel, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			if err := cli.Reload(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reload requested")
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live status dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.dial(opts.socket)
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer cancel()
			renderer := tui.New(cli, cmd.OutOrStdout())
			renderer.Refresh = refresh
			if err := renderer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 500*time.Millisecond, "dashboard refresh interval")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(configPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file")
	return cmd
}

func runCheck(path string, stdout, stderr io.Writer) error {
	if path == "" {
		return fmt.Errorf("check requires --config <path>")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration is invalid: %v\n", err)
		return fmt.Errorf("configuration validation failed")
	}
	start, stop, exit, _ := cfg.Hotkeys.Keys()
	fmt.Fprintln(stdout, "Configuration OK")
	fmt.Fprintf(stdout, "hotkeys: start=%s stop=%s exit=%s\n", start, stop, exit)
	fmt.Fprintf(stdout, "synth: %s (mover %s), picker: %s\n", cfg.Synth.Backend, cfg.Synth.Mover, cfg.Picker.Strategy)
	return nil
}
