package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type schemaMigration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Name      string    `bun:"name,pk"`
	AppliedAt time.Time `bun:"applied_at,notnull"`
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

// Migrate applies the Up section of every *.sql file in dir that has not been applied yet,
// in file name order. Each file runs in its own transaction. It returns the applied names.
func Migrate(ctx context.Context, db *bun.DB, dir string) ([]string, error) {
	if _, err := db.NewCreateTable().
		Model((*schemaMigration)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := migrationFiles(dir)
	if err != nil {
		return nil, err
	}

	var done []schemaMigration
	if err := db.NewSelect().Model(&done).Scan(ctx); err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(done))
	for _, m := range done {
		applied[m.Name] = true
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if applied[name] {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return out, err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}

		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := execStatements(ctx, tx, upSQL); err != nil {
				return err
			}
			_, err := tx.NewInsert().
				Model(&schemaMigration{Name: name, AppliedAt: time.Now().UTC()}).
				Exec(ctx)
			return err
		})
		if err != nil {
			return out, fmt.Errorf("apply %s: %w", name, err)
		}
		out = append(out, name)
	}

	return out, nil
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func execStatements(ctx context.Context, exec rawExecutor, sql string) error {
	for _, stmt := range splitSQLStatements(sql) {
		if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
