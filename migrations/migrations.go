// Package migrations embeds the SurrealQL schema and reference data.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
)

// SeedFile holds reference data and is not part of the schema.
const SeedFile = "seed.surql"

//go:embed *.surql
var files embed.FS

// Files returns the schema files in the order Apply runs them.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".surql") && e.Name() != SeedFile {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the content of one embedded file.
func Read(name string) (string, error) {
	b, err := files.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Apply runs every schema file in lexical order. DEFINE statements are
// idempotent, so running it against an existing database is safe.
func Apply(ctx context.Context, db database.Database) error {
	names, err := Files()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, name := range names {
		if err := run(ctx, db, name); err != nil {
			return err
		}
	}
	return nil
}

// Seed loads permissions, roles and the event lookups.
func Seed(ctx context.Context, db database.Database) error {
	return run(ctx, db, SeedFile)
}

func run(ctx context.Context, db database.Database, name string) error {
	body, err := Read(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := db.Execute(ctx, body, nil); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}
