package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"podcastflow/internal/config"
	"podcastflow/internal/llm"
	"podcastflow/internal/store"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check configuration files",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if err := ensureWritable(target, overwrite); err != nil {
				return err
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Fill in transcription.api_key, the llm key and realtime.token_secret, or export the matching environment variables, then run podcastflow serve.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (defaults to the user config directory)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(raw)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", raw, err)
	}
	return path, nil
}

func ensureWritable(target string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if overwrite {
		return nil
	}
	_, err := os.Stat(target)
	switch {
	case err == nil:
		return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("stat %s: %w", target, err)
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report what it enables",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := config.Load(strings.TrimSpace(*ctx.configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, line := range configReport(cfg, path) {
				fmt.Fprintf(out, "%s: %s\n", line[0], line[1])
			}
			if !exists {
				fmt.Fprintln(out, "No file found; built-in defaults were used")
			}
			if check {
				if err := probeDatabase(cmd.Context(), cfg); err != nil {
					return err
				}
				fmt.Fprintln(out, "Database reachable")
				if err := probeModel(cmd.Context(), cfg); err != nil {
					return err
				}
				fmt.Fprintln(out, "LLM responded")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Also open the database and send a test prompt to the model")
	return cmd
}

func configReport(cfg *config.Config, path string) [][2]string {
	return [][2]string{
		{"Config path", path},
		{"Storage backend", cfg.Storage.Backend},
		{"LLM provider", cfg.LLM.Provider},
		{"Kafka trigger", yesNo(cfg.Trigger.KafkaEnabled)},
		{"Redis fan-out", yesNo(cfg.Realtime.RedisEnabled)},
	}
}

func probeDatabase(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	return st.Ping(ctx)
}

func probeModel(ctx context.Context, cfg *config.Config) error {
	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := llm.HealthCheck(ctx, completer); err != nil {
		return fmt.Errorf("llm health check: %w", err)
	}
	return nil
}
