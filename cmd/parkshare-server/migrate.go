package main

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"parkshare/backend/internal/store/postgres"
)

func newMigrateCmd(log *slog.Logger) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(log)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := cmd.Context()
			log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
			db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 1})
			if err != nil {
				args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
				log.Error("database connection failed", args...)
				return err
			}
			defer func() {
				if err := postgres.Close(db); err != nil {
					log.Warn("database close failed", slog.Any("err", err))
				}
			}()

			applied, err := postgres.Migrate(ctx, db, dir)
			if err != nil {
				log.Error("migration failed", slog.Any("err", err), slog.String("dir", dir))
				return err
			}

			printApplied(cmd, applied)
			log.Info("migrations applied", slog.String("dir", dir), slog.Int("count", len(applied)))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to migrations.dir)")
	return cmd
}

func printApplied(cmd *cobra.Command, applied []string) {
	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintln(out, "database is up to date")
		return
	}
	ok := color.New(color.FgGreen, color.Bold)
	for _, name := range applied {
		ok.Fprint(out, "applied")
		fmt.Fprintf(out, " %s\n", name)
	}
}
