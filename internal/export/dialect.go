package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql" // register mysql as a database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// Dialect describes how one SQL database spells DDL and bind parameters.
type Dialect struct {
	Name   string
	Driver string
	// TransactionalDDL reports whether DROP and CREATE roll back with the
	// surrounding transaction.
	TransactionalDDL bool
	types            map[xtable.Kind]string
	quote            func(string) string
	bind             func(n int) string
	// maxParams bounds the bind parameters of one INSERT.
	maxParams int
}

var dialects = map[string]Dialect{
	"sqlite": {
		Name:             "sqlite",
		TransactionalDDL: true,
		Driver:           "sqlite",
		types: map[xtable.Kind]string{
			xtable.KindID:       "TEXT",
			xtable.KindString:   "TEXT",
			xtable.KindText:     "TEXT",
			xtable.KindInt:      "INTEGER",
			xtable.KindBool:     "INTEGER",
			xtable.KindDateTime: "TIMESTAMP",
			xtable.KindRef:      "TEXT",
		},
		quote:     doubleQuote,
		bind:      func(int) string { return "?" },
		maxParams: 999,
	},
	"postgres": {
		Name:             "postgres",
		TransactionalDDL: true,
		Driver:           "pgx",
		types: map[xtable.Kind]string{
			xtable.KindID:       "TEXT",
			xtable.KindString:   "TEXT",
			xtable.KindText:     "TEXT",
			xtable.KindInt:      "BIGINT",
			xtable.KindBool:     "BOOLEAN",
			xtable.KindDateTime: "TIMESTAMPTZ",
			xtable.KindRef:      "TEXT",
		},
		quote:     doubleQuote,
		bind:      func(n int) string { return "$" + strconv.Itoa(n) },
		maxParams: 65535,
	},
	"mysql": {
		Name:             "mysql",
		TransactionalDDL: false,
		Driver:           "mysql",
		types: map[xtable.Kind]string{
			xtable.KindID:       "VARCHAR(255)",
			xtable.KindString:   "TEXT",
			xtable.KindText:     "LONGTEXT",
			xtable.KindInt:      "BIGINT",
			xtable.KindBool:     "BOOLEAN",
			xtable.KindDateTime: "DATETIME(6)",
			xtable.KindRef:      "VARCHAR(255)",
		},
		quote:     func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
		bind:      func(int) string { return "?" },
		maxParams: 65535,
	},
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown export dialect %q (want sqlite, postgres or mysql)", name)
	}
	return d, nil
}

// Open connects to dsn with the driver the dialect names.
func Open(ctx context.Context, dialect, dsn string) (*sql.DB, Dialect, error) {
	d, err := LookupDialect(dialect)
	if err != nil {
		return nil, Dialect{}, err
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	return db, d, nil
}

// ColumnType returns the SQL type of kind. Unknown kinds are stored as text.
func (d Dialect) ColumnType(kind xtable.Kind) string {
	if t, ok := d.types[kind]; ok {
		return t
	}
	return d.types[xtable.KindText]
}

func (d Dialect) dropTable(table string) string {
	return "DROP TABLE IF EXISTS " + d.quote(table)
}

func (d Dialect) createTable(table string, cols []column) string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		def := d.quote(c.name) + " " + d.ColumnType(c.kind)
		if c.name == "id" {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.quote(table), strings.Join(defs, ", "))
}

// insert builds one multi-row INSERT for rows rows of cols.
func (d Dialect) insert(table string, cols []column, rows int) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.quote(c.name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.quote(table), strings.Join(names, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.bind(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func doubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
