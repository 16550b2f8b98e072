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

	"github.com/spf13/cobra"

	"github.com/Elec3137/macaway/internal/engine"
	"github.com/Elec3137/macaway/internal/macro"
)

func newRecordCmd(opts *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "record [name]",
		Short: "Wait for the start hotkey, record one macro and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), opts, oneShot{listen: true}, func(ctx context.Context, a *app) error {
				path, err := a.engine.RecordOnce(ctx, macroName(a, args), force)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing macro file")
	return cmd
}

func newPlayCmd(opts *globalOptions) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "play [name]",
		Short: "Load a saved macro and play it when the start hotkey is pressed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), opts, oneShot{listen: !now, synth: true}, func(ctx context.Context, a *app) error {
				return a.engine.PlayOnce(ctx, macroName(a, args), now)
			})
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "play immediately instead of waiting for the start hotkey")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved macros in the recording directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			infos, err := macro.NewStore(cfg.Recording.Dir).List()
			if err != nil {
				return err
			}
			return printMacros(cmd.OutOrStdout(), infos)
		},
	}
}

func printMacros(w io.Writer, infos []macro.Info) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "no macros saved")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tPATH")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Name, info.Size, info.Modified.Format("2006-01-02 15:04"), info.Path)
	}
	return tw.Flush()
}

func macroName(a *app, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.cfg.Recording.Name
}

// oneShot says which parts of the runtime a single record or play needs.
type oneShot struct {
	listen bool
	synth  bool
}

// runOneShot runs fn with the global listener and ydotoold started as
// requested, and returns when fn finishes or the listener fails.
func runOneShot(parent context.Context, opts *globalOptions, needs oneShot, fn func(context.Context, *app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if needs.synth {
		if err := a.startDaemon(ctx); err != nil {
			return err
		}
	}
	errs := make(chan error, 2)
	if needs.listen {
		a.listen(ctx, errs)
	}
	go func() {
		errs <- fn(ctx, a)
	}()

	err = <-errs
	switch {
	case errors.Is(err, engine.ErrExitRequested):
		a.logger.Infof("exit requested")
		return nil
	case errors.Is(err, context.Canceled) && parent.Err() == nil:
		a.logger.Infof("interrupted")
		return nil
	}
	return err
}
