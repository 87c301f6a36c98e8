package repository

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// statementRows returns the records produced by statement i of a Query call.
func statementRows(results []interface{}, i int) []xtable.Row {
	if i < 0 || i >= len(results) {
		return nil
	}
	var raw interface{} = results[i]
	if resp, ok := raw.(map[string]interface{}); ok {
		if _, wrapped := resp["status"]; wrapped {
			raw = resp["result"]
		}
	}

	switch v := raw.(type) {
	case []interface{}:
		rows := make([]xtable.Row, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				rows = append(rows, m)
			}
		}
		return rows
	case map[string]interface{}:
		return []xtable.Row{v}
	}
	return nil
}

// statementValues returns the scalar results of a SELECT VALUE statement.
func statementValues(results []interface{}, i int) []interface{} {
	if i < 0 || i >= len(results) {
		return nil
	}
	resp, ok := results[i].(map[string]interface{})
	if !ok {
		return nil
	}
	values, _ := resp["result"].([]interface{})
	return values
}

// extractCount reads the count of a "SELECT count() AS count ... GROUP ALL".
// A query matching nothing returns no rows, which is a count of zero.
func extractCount(results []interface{}) int {
	rows := statementRows(results, 0)
	if len(rows) == 0 {
		return 0
	}
	n, _ := xtable.AsInt64(rows[0]["count"])
	return int(n)
}

// setClause renders columns as a SET list in a stable order. Times are cast
// with <datetime>, and nil becomes NONE since option<T> fields reject NULL.
func setClause(columns xtable.Row, vars map[string]interface{}) string {
	members := make([]string, 0, len(columns))
	for member := range columns {
		members = append(members, member)
	}
	sort.Strings(members)

	parts := make([]string, 0, len(members))
	for _, member := range members {
		name := "c_" + member
		switch v := columns[member].(type) {
		case nil:
			parts = append(parts, member+" = NONE")
		case time.Time:
			parts = append(parts, fmt.Sprintf("%s = <datetime> $%s", member, name))
			vars[name] = v.UTC().Format(time.RFC3339Nano)
		case *time.Time:
			if v == nil {
				parts = append(parts, member+" = NONE")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s = <datetime> $%s", member, name))
			vars[name] = v.UTC().Format(time.RFC3339Nano)
		default:
			parts = append(parts, fmt.Sprintf("%s = $%s", member, name))
			vars[name] = v
		}
	}
	return strings.Join(parts, ", ")
}

// normalizeRow replaces record ids with "table:id" strings so rows compare
// and serialize the same way whatever the driver returned.
func normalizeRow(row xtable.Row) xtable.Row {
	if row == nil {
		return nil
	}
	if id, ok := row["id"]; ok {
		row["id"] = xtable.RecordIDString(id)
	}
	return row
}

func normalizeRows(rows []xtable.Row) []xtable.Row {
	for _, row := range rows {
		normalizeRow(row)
	}
	return rows
}
