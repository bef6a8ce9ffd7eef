package main

import (
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"parkshare/backend/internal/config"
)

func newRootCmd(log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Parking reservation backend",
		Long: `parkshare-server books parking resources, including daily, weekly, biweekly
and monthly recurring reservations, and serves them over gRPC.

Running it without a subcommand is the same as "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), log)
		},
	}
	root.AddCommand(newServeCmd(log), newMigrateCmd(log))
	return root
}

// loadConfig reads the configuration and returns a logger at the configured level.
func loadConfig(base *slog.Logger) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		base.Error("config load failed", slog.Any("err", err))
		return config.Config{}, base, err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)
	return cfg, log, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
