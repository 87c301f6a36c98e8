package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// TxBuilder collects statements into one BEGIN/COMMIT block. Each statement's
// variables are renamed ($id -> $v3_id) so statements built independently can
// share variable names.
type TxBuilder struct {
	statements []string
	vars       map[string]interface{}
	varCounter int
}

// NewTxBuilder creates an empty builder.
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{vars: make(map[string]interface{})}
}

// Add appends a statement and returns the mapping from original to namespaced variable names.
func (tb *TxBuilder) Add(query string, vars map[string]interface{}) map[string]string {
	mapping := make(map[string]string, len(vars))
	rewritten := query

	for name, value := range vars {
		tb.varCounter++
		renamed := fmt.Sprintf("v%d_%s", tb.varCounter, name)

		// \b keeps $id from matching inside $ids
		pattern := regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `\b`)
		rewritten = pattern.ReplaceAllLiteralString(rewritten, "$"+renamed)

		tb.vars[renamed] = value
		mapping[name] = renamed
	}

	tb.statements = append(tb.statements, rewritten)
	return mapping
}

// Len returns the number of statements added so far.
func (tb *TxBuilder) Len() int {
	return len(tb.statements)
}

// Build returns the transaction text and merged variables.
func (tb *TxBuilder) Build() (string, map[string]interface{}) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		sb.WriteString(stmt)
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// ExecuteTransaction runs the built transaction.
func ExecuteTransaction(ctx context.Context, db Database, tb *TxBuilder) ([]interface{}, error) {
	query, vars := tb.Build()
	if query == "" {
		return nil, nil
	}
	return db.Query(ctx, query, vars)
}

// AtomicBatch is a fluent wrapper over TxBuilder for statements that must all apply.
type AtomicBatch struct {
	tb *TxBuilder
}

// NewAtomicBatch creates an empty batch.
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{tb: NewTxBuilder()}
}

// Add appends a statement to the batch.
func (ab *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	ab.tb.Add(query, vars)
	return ab
}

// Execute runs all statements in one transaction. An empty batch is a no-op.
func (ab *AtomicBatch) Execute(ctx context.Context, db Database) error {
	_, err := ExecuteTransaction(ctx, db, ab.tb)
	return err
}

// Len returns the number of statements in the batch.
func (ab *AtomicBatch) Len() int {
	return ab.tb.Len()
}
