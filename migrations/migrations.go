// Package migrations embeds the schema applied by the seed tool.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-school/odyssey-school/internal/platform/db"
)

//go:embed *.up.sql
var files embed.FS

// Files returns the embedded up migrations in apply order.
func Files() ([]string, error) {
	names, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every up migration inside one transaction. Statements are
// idempotent so re-running is safe.
func Apply(ctx context.Context, pool db.Beginner) error {
	names, err := Files()
	if err != nil {
		return err
	}
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, name := range names {
			body, err := files.ReadFile(name)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("migrations: %s: %w", name, err)
			}
		}
		return nil
	})
}
