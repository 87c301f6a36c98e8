package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// TableRepository reads and writes rows of any registered table. Table and
// member names come from xtable definitions, which only admit identifiers.
type TableRepository struct {
	db database.Database
}

// NewTableRepository creates a new table repository
func NewTableRepository(db database.Database) *TableRepository {
	return &TableRepository{db: db}
}

// Select runs a query built by xtable.Table.BuildSelect.
func (r *TableRepository) Select(ctx context.Context, query string, vars map[string]interface{}) ([]xtable.Row, error) {
	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to select rows: %w", err)
	}
	return normalizeRows(statementRows(results, 0)), nil
}

// Count runs a query built by xtable.Table.BuildCount.
func (r *TableRepository) Count(ctx context.Context, query string, vars map[string]interface{}) (int, error) {
	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return extractCount(results), nil
}

// Get returns one row of table, or database.ErrNotFound.
func (r *TableRepository) Get(ctx context.Context, table, id string) (xtable.Row, error) {
	recordID, ok := xtable.QualifyID(table, id)
	if !ok {
		return nil, database.ErrNotFound
	}
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": recordID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get %s: %w", table, err)
	}
	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, database.ErrNotFound
	}
	return normalizeRow(row), nil
}

// Insert creates a row and returns it as stored. An empty key lets the
// database assign the record id.
func (r *TableRepository) Insert(ctx context.Context, table, key string, columns xtable.Row) (xtable.Row, error) {
	vars := map[string]interface{}{"table": table}
	target := "type::table($table)"
	if key != "" {
		target = "type::thing($table, $key)"
		vars["key"] = key
	}

	query := "CREATE " + target
	if set := setClause(columns, vars); set != "" {
		query += " SET " + set
	}
	query += " RETURN AFTER"

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, database.ErrQuery)
	}
	return normalizeRow(row), nil
}

// Update writes columns to an existing row and returns it as stored.
func (r *TableRepository) Update(ctx context.Context, table, id string, columns xtable.Row) (xtable.Row, error) {
	if len(columns) == 0 {
		return r.Get(ctx, table, id)
	}
	recordID, ok := xtable.QualifyID(table, id)
	if !ok {
		return nil, database.ErrNotFound
	}

	vars := map[string]interface{}{"id": recordID}
	query := fmt.Sprintf("UPDATE type::record($id) SET %s RETURN AFTER", setClause(columns, vars))

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update %s: %w", table, err)
	}
	row, ok := result.(map[string]interface{})
	if !ok {
		return nil, database.ErrNotFound
	}
	return normalizeRow(row), nil
}

// SoftDelete flags a row as deleted and stamps deleted_at.
func (r *TableRepository) SoftDelete(ctx context.Context, table, id, member string) error {
	recordID, ok := xtable.QualifyID(table, id)
	if !ok {
		return database.ErrNotFound
	}
	query := fmt.Sprintf("UPDATE type::record($id) SET %s = true, deleted_at = time::now()", member)
	if err := r.db.Execute(ctx, query, map[string]interface{}{"id": recordID}); err != nil {
		return fmt.Errorf("failed to soft delete %s: %w", table, err)
	}
	return nil
}

// Delete removes a row and every association row pointing at it in one
// transaction.
func (r *TableRepository) Delete(ctx context.Context, table, id string, links []xtable.AssociationLink) error {
	recordID, ok := xtable.QualifyID(table, id)
	if !ok {
		return database.ErrNotFound
	}
	if err := deleteWithLinks(ctx, r.db, recordID, links); err != nil {
		return fmt.Errorf("failed to delete %s: %w", table, err)
	}
	return nil
}

func deleteWithLinks(ctx context.Context, db database.Database, recordID string, links []xtable.AssociationLink) error {
	batch := database.NewAtomicBatch()
	for _, link := range links {
		batch.Add(
			fmt.Sprintf("DELETE %s WHERE %s = $id", link.Spec.Table, link.Column),
			map[string]interface{}{"id": recordID},
		)
	}
	batch.Add(`DELETE type::record($id)`, map[string]interface{}{"id": recordID})
	return batch.Execute(ctx, db)
}

// Existing reports which of ids name stored records. The ids must be
// qualified "table:id" strings.
func (r *TableRepository) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var sb strings.Builder
	vars := make(map[string]interface{}, len(ids))
	for i, id := range ids {
		name := fmt.Sprintf("ref_%d", i)
		fmt.Fprintf(&sb, "SELECT id FROM type::record($%s);\n", name)
		vars[name] = id
	}
	results, err := r.db.Query(ctx, sb.String(), vars)
	if err != nil {
		return nil, fmt.Errorf("failed to check references: %w", err)
	}
	for i, id := range ids {
		out[id] = len(statementRows(results, i)) > 0
	}
	return out, nil
}

// GroupCount counts rows of table per distinct value of member, for picker
// usage counts. Rows with no value are not reported.
func (r *TableRepository) GroupCount(ctx context.Context, table, member string) (map[string]int, error) {
	query := fmt.Sprintf("SELECT %s, count() AS count FROM %s WHERE %s != NONE GROUP BY %s", member, table, member, member)
	results, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s.%s: %w", table, member, err)
	}
	return groupCounts(statementRows(results, 0), member), nil
}

func groupCounts(rows []xtable.Row, member string) map[string]int {
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		key := xtable.RecordIDString(row[member])
		if key == "" {
			continue
		}
		n, _ := xtable.AsInt64(row["count"])
		out[key] += int(n)
	}
	return out
}
