// Package repository is the SurrealDB data access layer.
//
// Table rows travel as xtable.Row maps, since their shape is described by
// xtable definitions rather than Go structs. Record ids are normalized to
// "table:id" strings on the way out, and foreign keys are stored in that same
// form, so ids compare equal whichever side produced them.
//
// # Query Patterns
//
//   - Parameterized queries with $variable syntax
//   - type::record() and type::thing() for record addressing
//   - <datetime> casts for times, NONE for absent optional values
//   - database.AtomicBatch where several statements must apply together
//
// # Example Usage
//
//	repo := NewTableRepository(db)
//	row, err := repo.Get(ctx, "event", "event:abc123")
//	if errors.Is(err, database.ErrNotFound) {
//	    // Handle not found
//	}
package repository
