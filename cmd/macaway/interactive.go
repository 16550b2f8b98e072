package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Elec3137/macaway/internal/control"
	"github.com/Elec3137/macaway/internal/engine"
)

func runInteractive(parent context.Context, opts *globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if err := a.startDaemon(ctx); err != nil {
		return err
	}

	reloader := newConfigReloader(opts, logger, a.engine, a.metrics, a.cfg, a.raw)
	reloadRequests := make(chan string, 1)
	stopWatch, err := startConfigWatch(logger, opts.configPath, reloadRequests)
	if err != nil {
		logger.Warnf("config hot reload disabled: %v", err)
	} else {
		defer stopWatch()
	}

	ctrlSrv, err := control.NewServer(a.engine, logger.With("component", "control"), reloader.Reload, "")
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	errs := make(chan error, 3)
	a.listen(ctx, errs)
	go func() {
		errs <- a.engine.Run(ctx)
	}()
	go func() {
		if err := ctrlSrv.Serve(ctx); err != nil {
			logger.Warnf("control server stopped: %v", err)
		}
	}()

	for {
		select {
		case err := <-errs:
			switch {
			case err == nil, errors.Is(err, engine.ErrExitRequested), errors.Is(err, context.Canceled):
				logger.Infof("macaway stopped")
				return nil
			default:
				return err
			}
		case reason := <-reloadRequests:
			if err := reloader.Reload(reason); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if err := reloader.Reload("received SIGHUP"); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			default:
				logger.Infof("received %s, shutting down", sig)
				cancel()
			}
		}
	}
}
