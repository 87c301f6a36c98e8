package xtable

import (
	"fmt"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/changeplan"
)

// Registry is the ordered set of tables the server exposes.
type Registry struct {
	tables []*Table
	byName map[string]*Table
}

// NewRegistry registers tables in order.
func NewRegistry(tables ...*Table) *Registry {
	r := &Registry{byName: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		r.Register(t)
	}
	return r
}

// Register adds t. Invalid or duplicate tables panic: definitions are static.
func (r *Registry) Register(t *Table) {
	if err := t.Validate(); err != nil {
		panic(fmt.Sprintf("xtable: %v", err))
	}
	if _, dup := r.byName[t.Name]; dup {
		panic(fmt.Sprintf("xtable: table %q registered twice", t.Name))
	}
	r.tables = append(r.tables, t)
	r.byName[t.Name] = t
}

// Lookup returns the table named name.
func (r *Registry) Lookup(name string) (*Table, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Tables returns every table in registration order.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, len(r.tables))
	copy(out, r.tables)
	return out
}

// AssociationLink is an association table that references a table, and the
// column holding that table's ids.
type AssociationLink struct {
	Spec   changeplan.Spec
	Column string
}

// LinksTo returns every association table whose rows reference rows of name,
// either as the owning side or as the foreign side.
func (r *Registry) LinksTo(name string) []AssociationLink {
	var out []AssociationLink
	for _, t := range r.tables {
		for _, tf := range t.AssociationFields() {
			if t.Name == name {
				out = append(out, AssociationLink{Spec: tf.Spec, Column: tf.Spec.LocalKey})
			}
			if tf.Spec.ForeignTable == name {
				out = append(out, AssociationLink{Spec: tf.Spec, Column: tf.Spec.ForeignKey})
			}
		}
	}
	return out
}
