package xtable

import (
	"fmt"
	"strings"
)

// SlugMember is the column SlugSource fills.
const SlugMember = "slug"

// Order is one sort key.
type Order struct {
	Member string `json:"member"`
	Desc   bool   `json:"desc,omitempty"`
}

// Table describes one database table.
type Table struct {
	Name   string
	Label  string
	Fields []Field

	// View and Edit gate the whole table. Edit implies View.
	View Permission
	Edit Permission

	NaturalOrder []Order

	// SoftDeleteMember names a bool column marking deleted rows.
	SoftDeleteMember string
	// VisiblePermissionMember names a permission reference restricting who sees a row.
	VisiblePermissionMember string
	// SlugSource names the member a slug is derived from on create.
	SlugSource string
	// KeyMember names a member whose value becomes the record key on create,
	// so rows get stable ids such as permission:view_events.
	KeyMember string

	// LabelMember and ColorMember describe how rows appear as picker options.
	LabelMember string
	ColorMember string
}

// ClientSpec is the client-side description of a table for one principal.
type ClientSpec struct {
	Table        string       `json:"table"`
	Label        string       `json:"label"`
	Columns      []ColumnSpec `json:"columns"`
	DefaultOrder []Order      `json:"default_order"`
	CanEdit      bool         `json:"can_edit"`
	SoftDelete   bool         `json:"soft_delete"`
}

// Field returns the field named member, or nil.
func (t *Table) Field(member string) Field {
	for _, f := range t.Fields {
		if f.Member() == member {
			return f
		}
	}
	return nil
}

// AssociationFields returns the fields stored in association tables.
func (t *Table) AssociationFields() []*TagsField {
	var out []*TagsField
	for _, f := range t.Fields {
		if tf, ok := f.(*TagsField); ok {
			out = append(out, tf)
		}
	}
	return out
}

// ColumnFields returns the fields stored on the row itself.
func (t *Table) ColumnFields() []Field {
	var out []Field
	for _, f := range t.Fields {
		switch f.Association() {
		case AssocColumn, AssocForeignObject:
			out = append(out, f)
		}
	}
	return out
}

// CanView reports whether p may read the table.
func (t *Table) CanView(p *Principal) bool {
	return p.Has(t.View)
}

// CanEdit reports whether p may write the table.
func (t *Table) CanEdit(p *Principal) bool {
	return t.CanView(p) && p.Has(t.Edit)
}

func (t *Table) viewPermission(f Field) Permission {
	if perm := f.Auth().View; perm != "" {
		return perm
	}
	return t.View
}

func (t *Table) editPermission(f Field) Permission {
	if perm := f.Auth().Edit; perm != "" {
		return perm
	}
	return t.Edit
}

// CanViewField reports whether p may see f.
func (t *Table) CanViewField(p *Principal, f Field) bool {
	return t.CanView(p) && p.Has(t.viewPermission(f))
}

// CanEditField reports whether p may write f.
func (t *Table) CanEditField(p *Principal, f Field) bool {
	return writable(f) && t.CanEdit(p) && p.Has(t.editPermission(f))
}

func writable(f Field) bool {
	return !f.Flags().Has(BitReadOnly) && f.Association() != AssocCalculated && f.Kind() != KindID
}

// RowVisible applies the table gate and the row-level gates Where applies in queries.
func (t *Table) RowVisible(p *Principal, row Row) bool {
	return t.CanView(p) && t.RowPermitted(p, row)
}

// RowPermitted applies only the row-level gates: soft delete and visible permission.
func (t *Table) RowPermitted(p *Principal, row Row) bool {
	if row == nil {
		return false
	}
	if t.SoftDeleteMember != "" {
		if deleted, _ := row[t.SoftDeleteMember].(bool); deleted && p.Intention != IntentionAdmin {
			return false
		}
	}
	if t.VisiblePermissionMember != "" && !p.IsSysAdmin {
		if ref := RecordIDString(row[t.VisiblePermissionMember]); ref != "" {
			return p.Has(PermissionFromRecordID(ref))
		}
	}
	return true
}

// ClientSpec describes the columns p may see.
func (t *Table) ClientSpec(p *Principal) ClientSpec {
	spec := ClientSpec{
		Table:        t.Name,
		Label:        t.Label,
		Columns:      []ColumnSpec{},
		DefaultOrder: t.NaturalOrder,
		CanEdit:      t.CanEdit(p),
		SoftDelete:   t.SoftDeleteMember != "",
	}
	for _, f := range t.Fields {
		if !t.CanViewField(p, f) {
			continue
		}
		cs := f.ColumnSpec()
		cs.Editable = t.CanEditField(p, f)
		spec.Columns = append(spec.Columns, cs)
	}
	return spec
}

// ParseMutation validates input for mode and returns the change set. Members
// the table does not know and read-only members are ignored, since grids send
// whole rows back. Every failure is collected into one *ValidationError.
func (t *Table) ParseMutation(p *Principal, input Row, mode Mode) (*Mutation, error) {
	m := newMutation()
	verr := &ValidationError{}

	for _, f := range t.Fields {
		member := f.Member()
		if _, present := input[member]; present && writable(f) && !t.CanEditField(p, f) {
			verr.Add(member, errNotAllowed.Error())
			continue
		}
		if err := f.ApplyClientToDB(input, m, mode); err != nil {
			verr.Add(member, err.Error())
		}
	}

	if mode == ModeNew && t.SlugSource != "" {
		if slug, _ := m.Columns[SlugMember].(string); slug == "" {
			if src, _ := m.Columns[t.SlugSource].(string); src != "" {
				if err := t.deriveSlug(src, m); err != nil {
					verr.Add(SlugMember, err.Error())
				}
			}
		}
	}

	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

// deriveSlug fills the slug from src, cut to the slug field's length and
// validated like a client-supplied slug.
func (t *Table) deriveSlug(src string, m *Mutation) error {
	slug := Slugify(src)
	f := t.Field(SlugMember)
	if sf, ok := f.(*StringField); ok && sf.MaxLength > 0 && len(slug) > sf.MaxLength {
		slug = strings.TrimRight(slug[:sf.MaxLength], "-")
	}
	if slug == "" {
		return fmt.Errorf("cannot be derived from %s; supply one", t.SlugSource)
	}
	if f == nil {
		m.Columns[SlugMember] = slug
		return nil
	}
	return f.ApplyClientToDB(Row{SlugMember: slug}, m, ModeNew)
}

// RecordKey returns the key a new row should be created under, or "" to let
// the database assign one.
func (t *Table) RecordKey(m *Mutation) string {
	if t.KeyMember == "" || m == nil {
		return ""
	}
	key, _ := m.Columns[t.KeyMember].(string)
	if !identPattern.MatchString(key) {
		return ""
	}
	return key
}

// ToClient renders a stored row with only the members p may see.
func (t *Table) ToClient(p *Principal, db Row) Row {
	out := Row{}
	for _, f := range t.Fields {
		if t.CanViewField(p, f) {
			f.ApplyDBToClient(db, out)
		}
	}
	return out
}

// DiffRow drops the members of m that already match current. Association
// members are compared against current[member], which must hold the loaded ids.
func (t *Table) DiffRow(current Row, m *Mutation) *Mutation {
	out := newMutation()
	for member, v := range m.Columns {
		if t.isFoldedShadow(member) {
			continue
		}
		f := t.Field(member)
		if f != nil && f.Equal(current[member], v) {
			continue
		}
		out.Columns[member] = v
	}
	// shadow columns follow their source member
	for member, v := range m.Columns {
		if t.isFoldedShadow(member) {
			if _, changed := out.Columns[strings.TrimSuffix(member, foldedSuffix)]; changed {
				out.Columns[member] = v
			}
		}
	}
	for member, ids := range m.Associations {
		f := t.Field(member)
		if f != nil && f.Equal(current[member], ids) {
			continue
		}
		out.Associations[member] = ids
	}
	return out
}

func (t *Table) isFoldedShadow(member string) bool {
	source, ok := strings.CutSuffix(member, foldedSuffix)
	return ok && t.Field(source) != nil
}

// Validate checks that the definition is internally consistent.
func (t *Table) Validate() error {
	if !identPattern.MatchString(t.Name) {
		return fmt.Errorf("table name %q is not an identifier", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		member := f.Member()
		if !identPattern.MatchString(member) {
			return fmt.Errorf("%s: member %q is not an identifier", t.Name, member)
		}
		if _, dup := seen[member]; dup {
			return fmt.Errorf("%s: duplicate member %q", t.Name, member)
		}
		seen[member] = struct{}{}

		if tf, ok := f.(*TagsField); ok {
			for _, name := range []string{tf.Spec.Table, tf.Spec.LocalKey, tf.Spec.ForeignKey, tf.Spec.ForeignTable} {
				if !identPattern.MatchString(name) {
					return fmt.Errorf("%s.%s: association name %q is not an identifier", t.Name, member, name)
				}
			}
		}
	}
	if t.Field("id") == nil {
		return fmt.Errorf("%s: missing id field", t.Name)
	}
	for _, o := range t.NaturalOrder {
		if t.Field(o.Member) == nil {
			return fmt.Errorf("%s: natural order references unknown member %q", t.Name, o.Member)
		}
	}
	for _, member := range []string{t.SoftDeleteMember, t.VisiblePermissionMember, t.SlugSource, t.KeyMember, t.LabelMember, t.ColorMember} {
		if member != "" && t.Field(member) == nil {
			return fmt.Errorf("%s: unknown member %q", t.Name, member)
		}
	}
	if t.SlugSource != "" && t.Field(SlugMember) == nil {
		return fmt.Errorf("%s: slug source set without a %s member", t.Name, SlugMember)
	}
	return nil
}
