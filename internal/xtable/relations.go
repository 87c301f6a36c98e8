package xtable

import (
	"fmt"
	"slices"
	"sort"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
)

// ForeignSingleField holds the id of one row in ForeignTable.
type ForeignSingleField struct {
	Common
	ForeignTable string
}

func (f *ForeignSingleField) Association() Association { return AssocForeignObject }
func (f *ForeignSingleField) Kind() Kind               { return KindRef }

func (f *ForeignSingleField) Parse(raw any, _ Mode) (any, error) {
	id := idFromClient(raw)
	if id == "" {
		if f.Bits.Has(BitRequired) {
			return nil, errRequired
		}
		return nil, nil
	}
	qualified, ok := QualifyID(f.ForeignTable, id)
	if !ok {
		return nil, fmt.Errorf("must reference a %s record", f.ForeignTable)
	}
	return qualified, nil
}

func (f *ForeignSingleField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	return applyColumn(f, client, m, mode)
}

func (f *ForeignSingleField) ApplyDBToClient(db Row, client Row) {
	if id := RecordIDString(db[f.Name]); id != "" {
		client[f.Name] = id
		return
	}
	client[f.Name] = nil
}

func (f *ForeignSingleField) Equal(a, b any) bool {
	return RecordIDString(a) == RecordIDString(b)
}

func (f *ForeignSingleField) ColumnSpec() ColumnSpec {
	cs := f.columnSpec(KindRef, "foreignSingle")
	cs.ForeignTable = f.ForeignTable
	return cs
}

// TagsField is a many-to-many link kept in an association table. Its value is
// the list of associated foreign ids.
type TagsField struct {
	Common
	Spec changeplan.Spec
}

// Tags builds a TagsField over spec.
func Tags(member, caption string, spec changeplan.Spec) *TagsField {
	return &TagsField{Common: Common{Name: member, Caption: caption, Bits: BitFilter}, Spec: spec}
}

func (f *TagsField) Association() Association { return AssocRecord }
func (f *TagsField) Kind() Kind               { return KindRefList }

func (f *TagsField) Parse(raw any, _ Mode) (any, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("must be a list of %s ids", f.Spec.ForeignTable)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		qualified, ok := QualifyID(f.Spec.ForeignTable, idFromClient(item))
		if !ok {
			return nil, fmt.Errorf("must be a list of %s ids", f.Spec.ForeignTable)
		}
		if !slices.Contains(ids, qualified) {
			ids = append(ids, qualified)
		}
	}
	return ids, nil
}

func (f *TagsField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	if f.Bits.Has(BitReadOnly) {
		return nil
	}
	raw, present := client[f.Name]
	if !present {
		return nil
	}
	v, err := f.Parse(raw, mode)
	if err != nil {
		return err
	}
	m.Associations[f.Name] = v.([]string)
	return nil
}

// ApplyDBToClient expects the service to have loaded the association ids into db[member].
func (f *TagsField) ApplyDBToClient(db Row, client Row) {
	client[f.Name] = idList(db[f.Name])
}

func (f *TagsField) Equal(a, b any) bool {
	as, bs := idList(a), idList(b)
	if len(as) != len(bs) {
		return false
	}
	sort.Strings(as)
	sort.Strings(bs)
	return slices.Equal(as, bs)
}

func (f *TagsField) ColumnSpec() ColumnSpec {
	cs := f.columnSpec(KindRefList, "tags")
	cs.ForeignTable = f.Spec.ForeignTable
	cs.Sortable = false
	return cs
}

// idFromClient accepts a bare id, a "table:id" string or an object carrying "id".
func idFromClient(raw any) string {
	if m, ok := raw.(map[string]any); ok {
		return RecordIDString(m["id"])
	}
	return RecordIDString(raw)
}

func idList(v any) []string {
	out := []string{}
	switch list := v.(type) {
	case []string:
		out = append(out, list...)
	case []any:
		for _, item := range list {
			if id := idFromClient(item); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
