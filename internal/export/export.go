// Package export copies every registered table, and the association tables
// behind its tag fields, into a SQL database for reporting and backups.
//
// Each target table is dropped, recreated from the field kinds, and filled
// inside one SQL transaction. On dialects with transactional DDL (sqlite,
// postgres) a failed table leaves its previous copy in place. MySQL commits
// DROP TABLE and CREATE TABLE implicitly, so there a failed table may be left
// missing or partly filled; see Dialect.TransactionalDDL.
//
// Typical use:
//
//	db, dialect, err := export.Open(ctx, "sqlite", "file:dump.db")
//	ex := export.New(export.Config{Source: tableRepo, Registry: schema.New(), DB: db, Dialect: dialect})
//	counts, err := ex.Run(ctx)
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

const defaultPageSize = 500

// Source reads stored rows.
type Source interface {
	Select(ctx context.Context, query string, vars map[string]interface{}) ([]xtable.Row, error)
}

// Config holds configuration for an Exporter
type Config struct {
	Source   Source
	Registry *xtable.Registry
	DB       *sql.DB
	Dialect  Dialect
	// Tables limits the export to these xtables. Empty means all of them.
	Tables []string
	// PageSize is how many rows are read from Source per query.
	PageSize int
}

// Exporter writes a snapshot of the registry's tables to a SQL database.
type Exporter struct {
	src      Source
	registry *xtable.Registry
	db       *sql.DB
	dialect  Dialect
	only     []string
	pageSize int
}

type column struct {
	name string
	kind xtable.Kind
}

type target struct {
	name string
	cols []column
}

// New creates an exporter
func New(cfg Config) *Exporter {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Exporter{
		src:      cfg.Source,
		registry: cfg.Registry,
		db:       cfg.DB,
		dialect:  cfg.Dialect,
		only:     cfg.Tables,
		pageSize: pageSize,
	}
}

// Run exports every selected table and returns the rows written per table.
// It stops at the first table that fails.
func (e *Exporter) Run(ctx context.Context) (map[string]int, error) {
	targets, err := e.targets()
	if err != nil {
		return nil, err
	}

	if !e.dialect.TransactionalDDL {
		slog.Warn("export dialect commits DDL implicitly; a failed table is not restored",
			slog.String("dialect", e.dialect.Name))
	}

	counts := make(map[string]int, len(targets))
	for _, t := range targets {
		start := time.Now()
		n, err := e.exportTable(ctx, t)
		if err != nil {
			return counts, fmt.Errorf("export %s: %w", t.name, err)
		}
		counts[t.name] = n
		slog.Info("exported table",
			slog.String("table", t.name),
			slog.String("dialect", e.dialect.Name),
			slog.Int("rows", n),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return counts, nil
}

// targets lists the selected tables followed by their association tables.
func (e *Exporter) targets() ([]target, error) {
	var tables []*xtable.Table
	if len(e.only) == 0 {
		tables = e.registry.Tables()
	} else {
		for _, name := range e.only {
			t, ok := e.registry.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("unknown table %q", name)
			}
			tables = append(tables, t)
		}
	}

	var out []target
	seen := map[string]bool{}
	for _, t := range tables {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		tg := target{name: t.Name}
		for _, f := range t.ColumnFields() {
			tg.cols = append(tg.cols, column{name: f.Member(), kind: f.Kind()})
		}
		out = append(out, tg)
	}
	for _, t := range tables {
		for _, tf := range t.AssociationFields() {
			spec := tf.Spec
			if seen[spec.Table] {
				continue
			}
			seen[spec.Table] = true
			tg := target{name: spec.Table, cols: []column{
				{name: "id", kind: xtable.KindID},
				{name: spec.LocalKey, kind: xtable.KindRef},
				{name: spec.ForeignKey, kind: xtable.KindRef},
			}}
			for _, m := range spec.ExtraMembers {
				tg.cols = append(tg.cols, column{name: m, kind: xtable.KindText})
			}
			out = append(out, tg)
		}
	}
	return out, nil
}

func (e *Exporter) exportTable(ctx context.Context, t target) (n int, retErr error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, e.dialect.dropTable(t.name)); err != nil {
		return 0, fmt.Errorf("drop: %w", err)
	}
	if _, err := tx.ExecContext(ctx, e.dialect.createTable(t.name, t.cols)); err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}

	perInsert := e.dialect.maxParams / len(t.cols)
	if perInsert > e.pageSize {
		perInsert = e.pageSize
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY id LIMIT $limit START $start", t.name)
	for start := 0; ; start += e.pageSize {
		rows, err := e.src.Select(ctx, query, map[string]interface{}{"limit": e.pageSize, "start": start})
		if err != nil {
			return n, fmt.Errorf("read: %w", err)
		}
		for len(rows) > 0 {
			batch := rows
			if len(batch) > perInsert {
				batch = batch[:perInsert]
			}
			if err := e.insertBatch(ctx, tx, t, batch); err != nil {
				return n, err
			}
			n += len(batch)
			rows = rows[len(batch):]
		}
		if n < start+e.pageSize {
			break
		}
	}

	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (e *Exporter) insertBatch(ctx context.Context, tx *sql.Tx, t target, rows []xtable.Row) error {
	args := make([]any, 0, len(rows)*len(t.cols))
	for _, row := range rows {
		for _, c := range t.cols {
			v, err := sqlValue(c.kind, row[c.name])
			if err != nil {
				return fmt.Errorf("row %s column %s: %w", xtable.RecordIDString(row["id"]), c.name, err)
			}
			args = append(args, v)
		}
	}
	if _, err := tx.ExecContext(ctx, e.dialect.insert(t.name, t.cols, len(rows)), args...); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// sqlValue converts a stored value to what database/sql drivers accept for kind.
func sqlValue(kind xtable.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case xtable.KindID, xtable.KindRef:
		if s := xtable.RecordIDString(v); s != "" {
			return s, nil
		}
		return nil, nil
	case xtable.KindInt:
		i, ok := xtable.AsInt64(v)
		if !ok {
			return nil, fmt.Errorf("not an integer: %v", v)
		}
		return i, nil
	case xtable.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("not a bool: %v", v)
		}
		return b, nil
	case xtable.KindDateTime:
		t, ok := xtable.AsTime(v)
		if !ok {
			return nil, fmt.Errorf("not a datetime: %v", v)
		}
		return t.UTC(), nil
	}

	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
