package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"podcastflow/internal/daemon"
	"podcastflow/internal/logging"
)

const pidFileName = "podcastflow.pid"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), ctx, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind for this run")
	return cmd
}

func serve(parent context.Context, ctx *commandContext, bind string) error {
	if ctx == nil {
		return errors.New("serve: missing command context")
	}
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bind = strings.TrimSpace(bind); bind != "" {
		cfg.Paths.APIBind = bind
	}

	runCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.NewFromConfig(cfg, uuid.NewString()[:8])
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	release, err := claimPIDFile(filepath.Join(cfg.Paths.LogDir, pidFileName))
	if err != nil {
		return err
	}
	defer release()

	d, err := daemon.Build(runCtx, cfg, logger)
	if err != nil {
		logger.Error("daemon build failed", logging.Error(err))
		return fmt.Errorf("build daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(runCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	<-runCtx.Done()
	logger.Info("shutdown signal received", logging.String("api", d.Addr()))
	return nil
}

// claimPIDFile records the current PID at path and returns a func removing it.
func claimPIDFile(path string) (func(), error) {
	pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, pid, 0o644); err != nil {
		return nil, fmt.Errorf("pid file: %w", err)
	}
	return func() { _ = os.Remove(path) }, nil
}
