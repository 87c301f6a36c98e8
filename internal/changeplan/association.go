package changeplan

import (
	"context"
	"fmt"
	"reflect"
)

// Spec describes an association table linking a local row to a foreign row.
type Spec struct {
	// Table is the association table name, e.g. "event_tag_assignment".
	Table string
	// LocalKey is the column holding the owning row's id.
	LocalKey string
	// ForeignKey is the column holding the associated row's id.
	ForeignKey string
	// ForeignTable is the table ForeignKey points into.
	ForeignTable string
	// ExtraMembers lists payload columns compared when deciding on updates.
	ExtraMembers []string
}

// Record is one association row.
type Record struct {
	ID        string
	LocalID   string
	ForeignID string
	Extra     map[string]any
}

// RecordKey keys association records by the foreign id.
func RecordKey(r Record) string {
	return r.ForeignID
}

// RecordsEqual compares payload columns. Missing and empty extras are equal.
func RecordsEqual(a, b Record) bool {
	if len(a.Extra) == 0 && len(b.Extra) == 0 {
		return true
	}
	return reflect.DeepEqual(a.Extra, b.Extra)
}

// FromIDs builds desired records for a local row from a list of foreign ids.
func FromIDs(localID string, foreignIDs []string) []Record {
	out := make([]Record, 0, len(foreignIDs))
	for _, id := range foreignIDs {
		out = append(out, Record{LocalID: localID, ForeignID: id})
	}
	return out
}

// Applier performs the statements a plan calls for.
type Applier interface {
	DeleteAssociations(ctx context.Context, spec Spec, localID string, records []Record) error
	ModifyAssociations(ctx context.Context, spec Spec, localID string, records []Record) error
	CreateAssociations(ctx context.Context, spec Spec, localID string, records []Record) error
}

// UpdateAssociations reconciles the association rows of one local row. Deletes
// run first, then updates, then creates, so a unique (local, foreign) index
// never sees a transient duplicate.
func UpdateAssociations(ctx context.Context, a Applier, spec Spec, localID string, current, desired []Record) (Plan[Record], error) {
	for i := range desired {
		desired[i].LocalID = localID
	}

	plan := Compute(current, desired, RecordKey, RecordsEqual)

	if len(plan.Delete) > 0 {
		if err := a.DeleteAssociations(ctx, spec, localID, plan.Delete); err != nil {
			return plan, fmt.Errorf("delete %s rows: %w", spec.Table, err)
		}
	}
	if len(plan.Update) > 0 {
		if err := a.ModifyAssociations(ctx, spec, localID, plan.Update); err != nil {
			return plan, fmt.Errorf("update %s rows: %w", spec.Table, err)
		}
	}
	if len(plan.Create) > 0 {
		if err := a.CreateAssociations(ctx, spec, localID, plan.Create); err != nil {
			return plan, fmt.Errorf("create %s rows: %w", spec.Table, err)
		}
	}

	return plan, nil
}
