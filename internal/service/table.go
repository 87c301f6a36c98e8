package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/cache"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/metrics"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/xtable"
)

// RowRepository defines the interface for generic row storage
type RowRepository interface {
	Select(ctx context.Context, query string, vars map[string]interface{}) ([]xtable.Row, error)
	Count(ctx context.Context, query string, vars map[string]interface{}) (int, error)
	Get(ctx context.Context, table, id string) (xtable.Row, error)
	Insert(ctx context.Context, table, key string, columns xtable.Row) (xtable.Row, error)
	Update(ctx context.Context, table, id string, columns xtable.Row) (xtable.Row, error)
	SoftDelete(ctx context.Context, table, id, member string) error
	Delete(ctx context.Context, table, id string, links []xtable.AssociationLink) error
	GroupCount(ctx context.Context, table, member string) (map[string]int, error)
	Existing(ctx context.Context, ids []string) (map[string]bool, error)
}

// AssociationRepository defines the interface for association table storage
type AssociationRepository interface {
	changeplan.Applier
	Current(ctx context.Context, spec changeplan.Spec, localID string) ([]changeplan.Record, error)
	CurrentForMany(ctx context.Context, spec changeplan.Spec, localIDs []string) (map[string][]string, error)
	UsageCounts(ctx context.Context, spec changeplan.Spec) (map[string]int, error)
}

const (
	defaultOptionsTTL = 5 * time.Minute
	optionsKeyPrefix  = "options:"
)

// principalTables feed PrincipalService, so writes to them drop cached principals.
var principalTables = map[string]bool{"user": true, "role": true, "permission": true}

// TableService runs the generic table operations over a registry of tables.
type TableService struct {
	registry *xtable.Registry
	rows     RowRepository
	assoc    AssociationRepository
	cache    cache.Cache
	ttl      time.Duration
	metrics  *metrics.Metrics
}

// TableServiceConfig holds configuration for the table service
type TableServiceConfig struct {
	Registry     *xtable.Registry
	Rows         RowRepository
	Associations AssociationRepository
	Cache        cache.Cache // optional
	OptionsTTL   time.Duration
	Metrics      *metrics.Metrics // optional
}

// NewTableService creates a new table service
func NewTableService(cfg TableServiceConfig) *TableService {
	ttl := cfg.OptionsTTL
	if ttl <= 0 {
		ttl = defaultOptionsTTL
	}
	return &TableService{
		registry: cfg.Registry,
		rows:     cfg.Rows,
		assoc:    cfg.Associations,
		cache:    cfg.Cache,
		ttl:      ttl,
		metrics:  cfg.Metrics,
	}
}

// ListTables returns the tables p can view, in registry order.
func (s *TableService) ListTables(p *xtable.Principal) []model.TableInfo {
	out := []model.TableInfo{}
	for _, t := range s.registry.Tables() {
		if !t.CanView(p) {
			continue
		}
		out = append(out, model.TableInfo{Name: t.Name, Label: t.Label, CanEdit: t.CanEdit(p)})
	}
	return out
}

// ClientSpec returns the column description of a table as p sees it.
func (s *TableService) ClientSpec(p *xtable.Principal, table string) (*xtable.ClientSpec, error) {
	t, err := s.viewable(p, table)
	if err != nil {
		return nil, err
	}
	spec := t.ClientSpec(p)
	return &spec, nil
}

// Query returns one page of rows matching req.
func (s *TableService) Query(ctx context.Context, p *xtable.Principal, table string, req xtable.QueryRequest) (*model.TableQueryResult, error) {
	t, err := s.viewable(p, table)
	if err != nil {
		return nil, err
	}
	req.Normalize()

	query, vars, err := t.BuildSelect(p, req)
	if err != nil {
		return nil, err
	}
	countQuery, countVars, err := t.BuildCount(p, req)
	if err != nil {
		return nil, err
	}

	rows, err := s.rows.Select(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	total, err := s.rows.Count(ctx, countQuery, countVars)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}

	if err := s.loadAssociations(ctx, p, t, rows); err != nil {
		return nil, err
	}

	result := &model.TableQueryResult{
		Rows:     make([]xtable.Row, 0, len(rows)),
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	for _, row := range rows {
		result.Rows = append(result.Rows, t.ToClient(p, row))
	}
	return result, nil
}

// Get returns one row. Rows p may not see are reported as not found.
func (s *TableService) Get(ctx context.Context, p *xtable.Principal, table, id string) (xtable.Row, error) {
	t, err := s.viewable(p, table)
	if err != nil {
		return nil, err
	}
	row, err := s.load(ctx, p, t, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, p, t, []xtable.Row{row}); err != nil {
		return nil, err
	}
	return t.ToClient(p, row), nil
}

// Insert creates a row from client input, then links its association members.
func (s *TableService) Insert(ctx context.Context, p *xtable.Principal, table string, input xtable.Row) (xtable.Row, error) {
	t, err := s.editable(p, table)
	if err != nil {
		return nil, err
	}
	m, err := t.ParseMutation(p, input, xtable.ModeNew)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, t, m); err != nil {
		return nil, err
	}

	row, err := s.rows.Insert(ctx, t.Name, t.RecordKey(m), m.Columns)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	id := xtable.RecordIDString(row["id"])

	for _, tf := range t.AssociationFields() {
		ids, ok := m.Associations[tf.Member()]
		if !ok {
			continue
		}
		if _, err := s.applyAssociations(ctx, tf, id, nil, ids); err != nil {
			return nil, err
		}
		row[tf.Member()] = ids
	}

	s.metrics.Mutation(t.Name, "insert")
	s.invalidate(ctx, t.Name)
	return t.ToClient(p, row), nil
}

// Update applies the members of input that differ from the stored row.
func (s *TableService) Update(ctx context.Context, p *xtable.Principal, table, id string, input xtable.Row) (xtable.Row, error) {
	t, err := s.editable(p, table)
	if err != nil {
		return nil, err
	}
	current, err := s.load(ctx, p, t, id)
	if err != nil {
		return nil, err
	}
	m, err := t.ParseMutation(p, input, xtable.ModeUpdate)
	if err != nil {
		return nil, err
	}
	recordID := xtable.RecordIDString(current["id"])

	records := make(map[string][]changeplan.Record)
	for _, tf := range t.AssociationFields() {
		if _, ok := m.Associations[tf.Member()]; !ok {
			continue
		}
		recs, err := s.assoc.Current(ctx, tf.Spec, recordID)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", tf.Spec.Table, err)
		}
		records[tf.Member()] = recs
		current[tf.Member()] = foreignIDs(recs)
	}

	diff := t.DiffRow(current, m)
	if err := s.checkReferences(ctx, t, diff); err != nil {
		return nil, err
	}
	row := current
	if len(diff.Columns) > 0 {
		row, err = s.rows.Update(ctx, t.Name, recordID, diff.Columns)
		if err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return nil, ErrConflict
			}
			if errors.Is(err, database.ErrNotFound) {
				return nil, ErrRowNotFound
			}
			return nil, fmt.Errorf("failed to update %s: %w", table, err)
		}
	}

	for _, tf := range t.AssociationFields() {
		ids, changed := diff.Associations[tf.Member()]
		if !changed {
			continue
		}
		if _, err := s.applyAssociations(ctx, tf, recordID, records[tf.Member()], ids); err != nil {
			return nil, err
		}
	}

	if !diff.IsEmpty() {
		s.metrics.Mutation(t.Name, "update")
		s.invalidate(ctx, t.Name)
	}
	if err := s.loadAssociations(ctx, p, t, []xtable.Row{row}); err != nil {
		return nil, err
	}
	return t.ToClient(p, row), nil
}

// Delete soft-deletes rows of tables that support it and removes all others
// together with their association rows.
func (s *TableService) Delete(ctx context.Context, p *xtable.Principal, table, id string) error {
	t, err := s.editable(p, table)
	if err != nil {
		return err
	}
	row, err := s.load(ctx, p, t, id)
	if err != nil {
		return err
	}
	recordID := xtable.RecordIDString(row["id"])

	op := "delete"
	if t.SoftDeleteMember != "" {
		op = "soft_delete"
		err = s.rows.SoftDelete(ctx, t.Name, recordID, t.SoftDeleteMember)
	} else {
		err = s.rows.Delete(ctx, t.Name, recordID, s.registry.LinksTo(t.Name))
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrRowNotFound
		}
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	s.metrics.Mutation(t.Name, op)
	s.invalidate(ctx, t.Name)
	return nil
}

// Options lists the rows a foreign or tag member can point at, with how often
// each one is used by the owning table.
func (s *TableService) Options(ctx context.Context, p *xtable.Principal, table, member string) (*model.OptionsResponse, error) {
	t, err := s.viewable(p, table)
	if err != nil {
		return nil, err
	}
	f := t.Field(member)
	if f == nil || !t.CanViewField(p, f) {
		return nil, ErrFieldNotFound
	}

	var foreign string
	var counts func() (map[string]int, error)
	switch field := f.(type) {
	case *xtable.ForeignSingleField:
		foreign = field.ForeignTable
		counts = func() (map[string]int, error) { return s.rows.GroupCount(ctx, t.Name, field.Member()) }
	case *xtable.TagsField:
		foreign = field.Spec.ForeignTable
		counts = func() (map[string]int, error) { return s.assoc.UsageCounts(ctx, field.Spec) }
	default:
		return nil, ErrNotOptionField
	}

	ft, ok := s.registry.Lookup(foreign)
	if !ok {
		return nil, ErrTableNotFound
	}
	if !ft.CanView(p) {
		return nil, ErrNotAuthorized
	}

	items, err := s.optionItems(ctx, p, ft)
	if err != nil {
		return nil, err
	}
	usage, err := counts()
	if err != nil {
		return nil, fmt.Errorf("failed to count %s usage: %w", member, err)
	}
	for i := range items {
		items[i].UsageCount = usage[items[i].ID]
	}

	return &model.OptionsResponse{
		Table:        t.Name,
		Member:       member,
		ForeignTable: foreign,
		Options:      items,
	}, nil
}

// SetAssociations replaces the foreign ids linked through one tag member.
func (s *TableService) SetAssociations(ctx context.Context, p *xtable.Principal, table, id, member string, ids []string) (*model.AssociationResult, error) {
	t, err := s.viewable(p, table)
	if err != nil {
		return nil, err
	}
	f := t.Field(member)
	if f == nil || !t.CanViewField(p, f) {
		return nil, ErrFieldNotFound
	}
	tf, ok := f.(*xtable.TagsField)
	if !ok {
		return nil, ErrNotAssociationField
	}
	if !t.CanEditField(p, tf) {
		return nil, ErrNotAuthorized
	}

	parsed, err := tf.Parse(ids, xtable.ModeUpdate)
	if err != nil {
		verr := &xtable.ValidationError{}
		verr.Add(member, err.Error())
		return nil, verr
	}
	desired := parsed.([]string)

	row, err := s.load(ctx, p, t, id)
	if err != nil {
		return nil, err
	}
	recordID := xtable.RecordIDString(row["id"])

	current, err := s.assoc.Current(ctx, tf.Spec, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", tf.Spec.Table, err)
	}
	linked := make(map[string]bool, len(current))
	for _, rec := range current {
		linked[rec.ForeignID] = true
	}
	var added []string
	for _, fid := range desired {
		if !linked[fid] {
			added = append(added, fid)
		}
	}
	if err := s.checkReferences(ctx, t, &xtable.Mutation{Associations: map[string][]string{member: added}}); err != nil {
		return nil, err
	}
	plan, err := s.applyAssociations(ctx, tf, recordID, current, desired)
	if err != nil {
		return nil, err
	}

	if !plan.IsEmpty() {
		s.metrics.Mutation(t.Name, "associations")
		s.invalidate(ctx, t.Name)
	}
	return &model.AssociationResult{Member: member, IDs: desired, Counts: plan.Counts()}, nil
}

// checkReferences rejects foreign and tag members of m that name records
// which do not exist.
func (s *TableService) checkReferences(ctx context.Context, t *xtable.Table, m *xtable.Mutation) error {
	type ref struct{ member, id string }
	var refs []ref
	for _, f := range t.Fields {
		switch f.(type) {
		case *xtable.ForeignSingleField:
			if id, _ := m.Columns[f.Member()].(string); id != "" {
				refs = append(refs, ref{f.Member(), id})
			}
		case *xtable.TagsField:
			for _, id := range m.Associations[f.Member()] {
				refs = append(refs, ref{f.Member(), id})
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if !seen[r.id] {
			seen[r.id] = true
			ids = append(ids, r.id)
		}
	}
	existing, err := s.rows.Existing(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to check references: %w", err)
	}

	verr := &xtable.ValidationError{}
	reported := map[string]bool{}
	for _, r := range refs {
		if !existing[r.id] && !reported[r.member] {
			reported[r.member] = true
			verr.Add(r.member, fmt.Sprintf("%s does not exist", r.id))
		}
	}
	return verr.ErrOrNil()
}

func (s *TableService) viewable(p *xtable.Principal, table string) (*xtable.Table, error) {
	t, ok := s.registry.Lookup(table)
	if !ok {
		return nil, ErrTableNotFound
	}
	if !t.CanView(p) {
		return nil, ErrNotAuthorized
	}
	return t, nil
}

func (s *TableService) editable(p *xtable.Principal, table string) (*xtable.Table, error) {
	t, err := s.viewable(p, table)
	if err != nil {
		return nil, err
	}
	if !t.CanEdit(p) {
		return nil, ErrNotAuthorized
	}
	return t, nil
}

// load fetches a stored row and hides rows p may not see.
func (s *TableService) load(ctx context.Context, p *xtable.Principal, t *xtable.Table, id string) (xtable.Row, error) {
	row, err := s.rows.Get(ctx, t.Name, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRowNotFound
		}
		return nil, fmt.Errorf("failed to get %s row: %w", t.Name, err)
	}
	if !t.RowVisible(p, row) {
		return nil, ErrRowNotFound
	}
	return row, nil
}

// loadAssociations fills each visible tag member of rows with its foreign ids.
func (s *TableService) loadAssociations(ctx context.Context, p *xtable.Principal, t *xtable.Table, rows []xtable.Row) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, xtable.RecordIDString(row["id"]))
	}
	for _, tf := range t.AssociationFields() {
		if !t.CanViewField(p, tf) {
			continue
		}
		linked, err := s.assoc.CurrentForMany(ctx, tf.Spec, ids)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", tf.Spec.Table, err)
		}
		for i, row := range rows {
			foreign := linked[ids[i]]
			if foreign == nil {
				foreign = []string{}
			}
			row[tf.Member()] = foreign
		}
	}
	return nil
}

func (s *TableService) applyAssociations(ctx context.Context, tf *xtable.TagsField, localID string, current []changeplan.Record, ids []string) (changeplan.Plan[changeplan.Record], error) {
	plan, err := changeplan.UpdateAssociations(ctx, s.assoc, tf.Spec, localID, current, changeplan.FromIDs(localID, ids))
	if err != nil {
		return plan, fmt.Errorf("failed to update %s: %w", tf.Member(), err)
	}
	c := plan.Counts()
	s.metrics.ChangePlan(c.Create, c.Update, c.Delete)
	if !plan.IsEmpty() {
		// usage counts of the foreign table's options moved
		s.invalidate(ctx, tf.Spec.ForeignTable)
	}
	return plan, nil
}

// optionItems returns the pickable rows of ft as p sees them. Usage counts are
// added by the caller and never cached.
func (s *TableService) optionItems(ctx context.Context, p *xtable.Principal, ft *xtable.Table) ([]model.OptionItem, error) {
	key := optionsKey(ft.Name, p)
	if s.cache != nil {
		var items []model.OptionItem
		err := cache.GetJSON(ctx, s.cache, key, &items)
		s.metrics.CacheLookup(err == nil)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("options cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	query, vars, err := ft.BuildSelect(p, xtable.QueryRequest{PageSize: xtable.MaxPageSize})
	if err != nil {
		return nil, err
	}
	rows, err := s.rows.Select(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s options: %w", ft.Name, err)
	}

	items := make([]model.OptionItem, 0, len(rows))
	for _, row := range rows {
		item := model.OptionItem{ID: xtable.RecordIDString(row["id"])}
		if ft.LabelMember != "" {
			item.Label, _ = row[ft.LabelMember].(string)
		}
		if ft.ColorMember != "" {
			item.Color, _ = row[ft.ColorMember].(string)
		}
		items = append(items, item)
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, items, s.ttl); err != nil {
			slog.Warn("options cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
	return items, nil
}

// invalidate drops cached data derived from table. Failures only cost freshness
// until the TTL runs out, so they are logged.
func (s *TableService) invalidate(ctx context.Context, table string) {
	if s.cache == nil {
		return
	}
	prefixes := []string{optionsKeyPrefix + table + ":"}
	if principalTables[table] {
		prefixes = append(prefixes, principalKeyPrefix)
	}
	for _, prefix := range prefixes {
		if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
			slog.Warn("cache invalidation failed",
				slog.String("prefix", prefix),
				slog.String("error", err.Error()))
		}
	}
}

// optionsKey scopes cached options by the permission set that filtered them.
func optionsKey(table string, p *xtable.Principal) string {
	return fmt.Sprintf("%s%s:%s", optionsKeyPrefix, table, visibilityKey(p))
}

func visibilityKey(p *xtable.Principal) string {
	if p != nil && p.IsSysAdmin {
		return "sysadmin"
	}
	perms := p.PermissionList()
	parts := make([]string, len(perms))
	for i, perm := range perms {
		parts[i] = string(perm)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(parts, ",")))
	return fmt.Sprintf("%016x", h.Sum64())
}

func foreignIDs(records []changeplan.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ForeignID)
	}
	return out
}
