package repository

import (
	"context"
	"fmt"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// AssociationRepository stores association rows. It implements
// changeplan.Applier; each call runs as one transaction.
type AssociationRepository struct {
	db database.Database
}

// NewAssociationRepository creates a new association repository
func NewAssociationRepository(db database.Database) *AssociationRepository {
	return &AssociationRepository{db: db}
}

var _ changeplan.Applier = (*AssociationRepository)(nil)

// Current loads the association rows owned by localID.
func (r *AssociationRepository) Current(ctx context.Context, spec changeplan.Spec, localID string) ([]changeplan.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $local ORDER BY id", spec.Table, spec.LocalKey)
	results, err := r.db.Query(ctx, query, map[string]interface{}{"local": localID})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", spec.Table, err)
	}

	rows := statementRows(results, 0)
	out := make([]changeplan.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(spec, row))
	}
	return out, nil
}

// CurrentForMany returns foreign ids per local id for a page of rows.
func (r *AssociationRepository) CurrentForMany(ctx context.Context, spec changeplan.Spec, localIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(localIDs))
	if len(localIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf("SELECT id, %s, %s FROM %s WHERE %s IN $locals ORDER BY id",
		spec.LocalKey, spec.ForeignKey, spec.Table, spec.LocalKey)
	results, err := r.db.Query(ctx, query, map[string]interface{}{"locals": localIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", spec.Table, err)
	}

	for _, row := range statementRows(results, 0) {
		local := xtable.RecordIDString(row[spec.LocalKey])
		foreign := xtable.RecordIDString(row[spec.ForeignKey])
		if local != "" && foreign != "" {
			out[local] = append(out[local], foreign)
		}
	}
	return out, nil
}

// UsageCounts counts association rows per foreign id.
func (r *AssociationRepository) UsageCounts(ctx context.Context, spec changeplan.Spec) (map[string]int, error) {
	query := fmt.Sprintf("SELECT %s, count() AS count FROM %s GROUP BY %s", spec.ForeignKey, spec.Table, spec.ForeignKey)
	results, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", spec.Table, err)
	}
	return groupCounts(statementRows(results, 0), spec.ForeignKey), nil
}

// DeleteAssociations removes records, by record id when known.
func (r *AssociationRepository) DeleteAssociations(ctx context.Context, spec changeplan.Spec, localID string, records []changeplan.Record) error {
	batch := database.NewAtomicBatch()
	for _, rec := range records {
		if rec.ID != "" {
			batch.Add(`DELETE type::record($id)`, map[string]interface{}{"id": rec.ID})
			continue
		}
		batch.Add(
			fmt.Sprintf("DELETE %s WHERE %s = $local AND %s = $foreign", spec.Table, spec.LocalKey, spec.ForeignKey),
			map[string]interface{}{"local": localID, "foreign": rec.ForeignID},
		)
	}
	return batch.Execute(ctx, r.db)
}

// ModifyAssociations rewrites the payload columns of existing records.
func (r *AssociationRepository) ModifyAssociations(ctx context.Context, spec changeplan.Spec, localID string, records []changeplan.Record) error {
	if len(spec.ExtraMembers) == 0 {
		return nil
	}
	batch := database.NewAtomicBatch()
	for _, rec := range records {
		vars := map[string]interface{}{"local": localID, "foreign": rec.ForeignID}
		set := setClause(extraColumns(spec, rec), vars)
		batch.Add(
			fmt.Sprintf("UPDATE %s SET %s WHERE %s = $local AND %s = $foreign", spec.Table, set, spec.LocalKey, spec.ForeignKey),
			vars,
		)
	}
	return batch.Execute(ctx, r.db)
}

// CreateAssociations inserts new records.
func (r *AssociationRepository) CreateAssociations(ctx context.Context, spec changeplan.Spec, localID string, records []changeplan.Record) error {
	batch := database.NewAtomicBatch()
	for _, rec := range records {
		columns := extraColumns(spec, rec)
		columns[spec.LocalKey] = localID
		columns[spec.ForeignKey] = rec.ForeignID

		vars := map[string]interface{}{}
		batch.Add(fmt.Sprintf("CREATE %s SET %s", spec.Table, setClause(columns, vars)), vars)
	}
	return batch.Execute(ctx, r.db)
}

func extraColumns(spec changeplan.Spec, rec changeplan.Record) xtable.Row {
	out := xtable.Row{}
	for _, member := range spec.ExtraMembers {
		out[member] = rec.Extra[member]
	}
	return out
}

func recordFromRow(spec changeplan.Spec, row xtable.Row) changeplan.Record {
	rec := changeplan.Record{
		ID:        xtable.RecordIDString(row["id"]),
		LocalID:   xtable.RecordIDString(row[spec.LocalKey]),
		ForeignID: xtable.RecordIDString(row[spec.ForeignKey]),
	}
	if len(spec.ExtraMembers) > 0 {
		rec.Extra = make(map[string]any, len(spec.ExtraMembers))
		for _, member := range spec.ExtraMembers {
			if v, ok := row[member]; ok {
				rec.Extra[member] = v
			}
		}
	}
	return rec
}
