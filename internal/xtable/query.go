package xtable

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// FilterOp is a column filter operator.
type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpNe       FilterOp = "ne"
	OpContains FilterOp = "contains"
	OpLt       FilterOp = "lt"
	OpGt       FilterOp = "gt"
	OpIsNull   FilterOp = "isnull"
	OpNotNull  FilterOp = "notnull"
)

// ColumnFilter constrains one column.
type ColumnFilter struct {
	Member string   `json:"member"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value,omitempty"`
}

// QueryRequest is a page request from a data grid.
type QueryRequest struct {
	Page           int                 `json:"page"`
	PageSize       int                 `json:"page_size"`
	Quick          string              `json:"quick,omitempty"`
	Filters        []ColumnFilter      `json:"filters,omitempty"`
	TagFilters     map[string][]string `json:"tag_filters,omitempty"`
	Sort           []Order             `json:"sort,omitempty"`
	IncludeDeleted bool                `json:"include_deleted,omitempty"`
}

// Normalize clamps paging to sane values.
func (q *QueryRequest) Normalize() {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
}

// Where builds the WHERE expression for req as seen by p.
func (t *Table) Where(p *Principal, req QueryRequest) (Clause, error) {
	return t.where(p, req, &VarNamer{})
}

func (t *Table) where(p *Principal, req QueryRequest, n *VarNamer) (Clause, error) {
	verr := &ValidationError{}
	clauses := []Clause{t.visibility(p, req, n)}

	for _, token := range strings.Fields(req.Quick) {
		var matches []Clause
		for _, f := range t.ColumnFields() {
			if t.CanViewField(p, f) {
				matches = append(matches, f.QuickFilter(n, token))
			}
		}
		clauses = append(clauses, Or(matches...))
	}

	for _, cf := range req.Filters {
		c, err := t.columnFilter(p, cf, n)
		if err != nil {
			verr.Add(cf.Member, err.Error())
			continue
		}
		clauses = append(clauses, c)
	}

	members := make([]string, 0, len(req.TagFilters))
	for member := range req.TagFilters {
		members = append(members, member)
	}
	sort.Strings(members)
	for _, member := range members {
		c, err := t.tagFilter(p, member, req.TagFilters[member], n)
		if err != nil {
			verr.Add(member, err.Error())
			continue
		}
		clauses = append(clauses, c)
	}

	if err := verr.ErrOrNil(); err != nil {
		return Clause{}, err
	}
	return And(clauses...), nil
}

func (t *Table) visibility(p *Principal, req QueryRequest, n *VarNamer) Clause {
	var clauses []Clause
	if t.SoftDeleteMember != "" && !(req.IncludeDeleted && p.Intention == IntentionAdmin) {
		clauses = append(clauses, Clause{Expr: t.SoftDeleteMember + " != true"})
	}
	if t.VisiblePermissionMember != "" && !p.IsSysAdmin {
		member := t.VisiblePermissionMember
		perms := p.PermissionList()
		if len(perms) == 0 {
			clauses = append(clauses, Clause{Expr: member + " = NONE"})
		} else {
			ids := make([]string, 0, len(perms))
			for _, perm := range perms {
				ids = append(ids, perm.RecordID())
			}
			v := n.Next(member)
			clauses = append(clauses, Clause{
				Expr: fmt.Sprintf("%s = NONE OR %s IN $%s", member, member, v),
				Vars: map[string]any{v: ids},
			})
		}
	}
	return And(clauses...)
}

func (t *Table) columnFilter(p *Principal, cf ColumnFilter, n *VarNamer) (Clause, error) {
	f := t.Field(cf.Member)
	if f == nil || !f.Flags().Has(BitFilter) || !t.CanViewField(p, f) || f.Association() == AssocRecord {
		return Clause{}, fmt.Errorf("cannot filter on this member")
	}
	member := f.Member()

	switch cf.Op {
	case OpIsNull:
		return Clause{Expr: fmt.Sprintf("%s = NONE OR %s = NULL", member, member)}, nil
	case OpNotNull:
		return Clause{Expr: fmt.Sprintf("%s != NONE AND %s != NULL", member, member)}, nil
	case OpContains:
		s, ok := cf.Value.(string)
		if !ok || s == "" {
			return Clause{}, fmt.Errorf("contains needs a text value")
		}
		v := n.Next(member)
		return Clause{
			Expr: fmt.Sprintf("string::contains(string::lowercase(%s ?? ''), $%s)", member, v),
			Vars: map[string]any{v: strings.ToLower(s)},
		}, nil
	}

	ops := map[FilterOp]string{OpEq: "=", OpNe: "!=", OpLt: "<", OpGt: ">"}
	sym, ok := ops[cf.Op]
	if !ok {
		return Clause{}, fmt.Errorf("unknown operator %q", cf.Op)
	}
	value, err := f.Parse(cf.Value, ModeView)
	if err != nil {
		return Clause{}, err
	}
	if value == nil {
		return Clause{}, fmt.Errorf("needs a value")
	}
	v := n.Next(member)
	return Clause{Expr: fmt.Sprintf("%s %s $%s", member, sym, v), Vars: map[string]any{v: value}}, nil
}

func (t *Table) tagFilter(p *Principal, member string, raw []string, n *VarNamer) (Clause, error) {
	tf, ok := t.Field(member).(*TagsField)
	if !ok || !t.CanViewField(p, tf) {
		return Clause{}, fmt.Errorf("not an association member")
	}
	parsed, err := tf.Parse(raw, ModeView)
	if err != nil {
		return Clause{}, err
	}
	ids := parsed.([]string)
	if len(ids) == 0 {
		return Clause{}, nil
	}
	v := n.Next(member)
	return Clause{
		Expr: fmt.Sprintf("type::string(id) IN (SELECT VALUE %s FROM %s WHERE %s IN $%s)",
			tf.Spec.LocalKey, tf.Spec.Table, tf.Spec.ForeignKey, v),
		Vars: map[string]any{v: ids},
	}, nil
}

func (t *Table) orderBy(sortKeys []Order) (string, error) {
	if len(sortKeys) == 0 {
		sortKeys = t.NaturalOrder
	}
	verr := &ValidationError{}
	parts := make([]string, 0, len(sortKeys)+1)
	hasID := false
	for _, o := range sortKeys {
		f := t.Field(o.Member)
		if f == nil || !f.Flags().Has(BitSort) || f.Association() == AssocRecord {
			verr.Add(o.Member, "cannot sort on this member")
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, f.Member()+" "+dir)
		hasID = hasID || f.Member() == "id"
	}
	if err := verr.ErrOrNil(); err != nil {
		return "", err
	}
	if !hasID {
		// keeps paging stable when sort keys tie
		parts = append(parts, "id ASC")
	}
	return strings.Join(parts, ", "), nil
}

// BuildSelect returns a paged SELECT for req.
func (t *Table) BuildSelect(p *Principal, req QueryRequest) (string, map[string]any, error) {
	req.Normalize()
	where, err := t.Where(p, req)
	if err != nil {
		return "", nil, err
	}
	order, err := t.orderBy(req.Sort)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", t.Name)
	if !where.IsEmpty() {
		sb.WriteString(" WHERE " + where.Expr)
	}
	sb.WriteString(" ORDER BY " + order)
	sb.WriteString(" LIMIT $limit START $start")

	vars := make(map[string]any, len(where.Vars)+2)
	for k, v := range where.Vars {
		vars[k] = v
	}
	vars["limit"] = req.PageSize
	vars["start"] = req.Page * req.PageSize
	return sb.String(), vars, nil
}

// BuildCount returns a count of the rows req matches, ignoring paging.
func (t *Table) BuildCount(p *Principal, req QueryRequest) (string, map[string]any, error) {
	where, err := t.Where(p, req)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("SELECT count() AS count FROM %s", t.Name)
	if !where.IsEmpty() {
		query += " WHERE " + where.Expr
	}
	query += " GROUP ALL"
	vars := where.Vars
	if vars == nil {
		vars = map[string]any{}
	}
	return query, vars, nil
}
