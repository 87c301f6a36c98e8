package xtable

// Mode says what a parse is for.
type Mode string

const (
	ModeNew    Mode = "new"
	ModeUpdate Mode = "update"
	ModeView   Mode = "view"
)

// Association says where a field's value lives.
type Association string

const (
	// AssocColumn is a plain column on the row.
	AssocColumn Association = "column"
	// AssocForeignObject is a column holding the id of a row in another table.
	AssocForeignObject Association = "foreignObject"
	// AssocRecord is a list of ids kept in an association table.
	AssocRecord Association = "associationRecord"
	// AssocCalculated is derived from other members and never stored.
	AssocCalculated Association = "calculated"
)

// Kind is the storage type of a field, used for client hints and SQL export.
type Kind string

const (
	KindID       Kind = "id"
	KindString   Kind = "string"
	KindText     Kind = "text"
	KindInt      Kind = "int"
	KindBool     Kind = "bool"
	KindDateTime Kind = "datetime"
	KindRef      Kind = "ref"
	KindRefList  Kind = "refs"
)

// Bit is a set of field flags.
type Bit uint32

const (
	BitRequired Bit = 1 << iota
	BitReadOnly
	BitNull
	BitSort
	BitFilter
	BitSearch
)

// Has reports whether every bit of o is set.
func (b Bit) Has(o Bit) bool {
	return b&o == o
}

// AuthMap overrides the table permissions for one field. Empty entries inherit.
type AuthMap struct {
	View Permission
	Edit Permission
}

// ColumnSpec is what a client needs to render and edit one column.
type ColumnSpec struct {
	Member       string   `json:"member"`
	Label        string   `json:"label"`
	Kind         Kind     `json:"kind"`
	Renderer     string   `json:"renderer"`
	Format       string   `json:"format,omitempty"`
	Editable     bool     `json:"editable"`
	Required     bool     `json:"required"`
	Nullable     bool     `json:"nullable"`
	Sortable     bool     `json:"sortable"`
	Filterable   bool     `json:"filterable"`
	Width        int      `json:"width,omitempty"`
	Options      []string `json:"options,omitempty"`
	ForeignTable string   `json:"foreign_table,omitempty"`
	Min          *int64   `json:"min,omitempty"`
	Max          *int64   `json:"max,omitempty"`
}

// Mutation is a validated change set ready for the repository.
type Mutation struct {
	Columns      Row
	Associations map[string][]string
}

func newMutation() *Mutation {
	return &Mutation{Columns: Row{}, Associations: map[string][]string{}}
}

// IsEmpty reports whether the mutation writes nothing.
func (m *Mutation) IsEmpty() bool {
	return m == nil || (len(m.Columns) == 0 && len(m.Associations) == 0)
}

// Field is one member of a table.
type Field interface {
	Member() string
	Label() string
	Association() Association
	Kind() Kind
	Flags() Bit
	Auth() AuthMap

	// Default is written on ModeNew when the client omits the member. nil means none.
	Default() any

	// Parse decodes and validates one client value.
	Parse(raw any, mode Mode) (any, error)

	// ApplyClientToDB copies the validated client value into the mutation.
	ApplyClientToDB(client Row, m *Mutation, mode Mode) error

	// ApplyDBToClient writes the client form of the stored value.
	ApplyDBToClient(db Row, client Row)

	// Equal compares a stored value with a parsed one.
	Equal(a, b any) bool

	// QuickFilter returns this field's contribution to a free-text search.
	QuickFilter(n *VarNamer, query string) Clause

	ColumnSpec() ColumnSpec
}

// Common carries the attributes shared by all fields.
type Common struct {
	Name    string
	Caption string
	Bits    Bit
	Access  AuthMap
	Width   int
}

func (c *Common) Member() string { return c.Name }

func (c *Common) Label() string {
	if c.Caption == "" {
		return c.Name
	}
	return c.Caption
}

func (c *Common) Flags() Bit { return c.Bits }

func (c *Common) Auth() AuthMap { return c.Access }

func (c *Common) Default() any { return nil }

func (c *Common) QuickFilter(*VarNamer, string) Clause { return Clause{} }

func (c *Common) columnSpec(kind Kind, renderer string) ColumnSpec {
	return ColumnSpec{
		Member:     c.Name,
		Label:      c.Label(),
		Kind:       kind,
		Renderer:   renderer,
		Editable:   !c.Bits.Has(BitReadOnly),
		Required:   c.Bits.Has(BitRequired),
		Nullable:   c.Bits.Has(BitNull),
		Sortable:   c.Bits.Has(BitSort),
		Filterable: c.Bits.Has(BitFilter),
		Width:      c.Width,
	}
}

// applyColumn is the shared ApplyClientToDB for column-backed fields.
func applyColumn(f Field, client Row, m *Mutation, mode Mode) error {
	if f.Flags().Has(BitReadOnly) {
		return nil
	}
	raw, present := client[f.Member()]
	if !present {
		if mode != ModeNew {
			return nil
		}
		if d := f.Default(); d != nil {
			m.Columns[f.Member()] = d
			return nil
		}
		if f.Flags().Has(BitRequired) {
			return errRequired
		}
		return nil
	}
	v, err := f.Parse(raw, mode)
	if err != nil {
		return err
	}
	m.Columns[f.Member()] = v
	return nil
}
