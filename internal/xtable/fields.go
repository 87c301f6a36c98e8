package xtable

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	hexColor     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// now is swapped in tests.
var now = time.Now

// PKField is the record id. It is never written by clients.
type PKField struct {
	Common
}

// PK returns the id field every table starts with.
func PK() *PKField {
	return &PKField{Common: Common{Name: "id", Caption: "ID", Bits: BitReadOnly | BitSort}}
}

func (f *PKField) Association() Association { return AssocColumn }
func (f *PKField) Kind() Kind               { return KindID }

func (f *PKField) Parse(raw any, _ Mode) (any, error) {
	s := RecordIDString(raw)
	if s == "" {
		return nil, errors.New("must be a record id")
	}
	return s, nil
}

func (f *PKField) ApplyClientToDB(Row, *Mutation, Mode) error { return nil }

func (f *PKField) ApplyDBToClient(db Row, client Row) {
	client[f.Name] = RecordIDString(db[f.Name])
}

func (f *PKField) Equal(a, b any) bool { return RecordIDString(a) == RecordIDString(b) }

func (f *PKField) ColumnSpec() ColumnSpec {
	cs := f.columnSpec(KindID, "id")
	cs.Editable = false
	return cs
}

// StringFormat selects normalization and validation for a StringField.
type StringFormat string

const (
	FormatPlain    StringFormat = "plain"
	FormatTitle    StringFormat = "title"
	FormatName     StringFormat = "name"
	FormatEmail    StringFormat = "email"
	FormatRaw      StringFormat = "raw"
	FormatMarkdown StringFormat = "markdown"
	FormatSlug     StringFormat = "slug"
	FormatURL      StringFormat = "url"
	FormatIdent    StringFormat = "ident"
)

// StringField is a text column.
type StringField struct {
	Common
	Format    StringFormat
	MinLength int
	MaxLength int
}

func (f *StringField) Association() Association { return AssocColumn }

func (f *StringField) Kind() Kind {
	if f.Format == FormatMarkdown {
		return KindText
	}
	return KindString
}

func (f *StringField) normalize(s string) string {
	switch f.Format {
	case FormatRaw, FormatMarkdown:
		return s
	case FormatEmail, FormatSlug, FormatIdent:
		return strings.ToLower(strings.TrimSpace(s))
	case FormatName:
		return strings.Join(strings.Fields(s), " ")
	default:
		return strings.TrimSpace(s)
	}
}

func (f *StringField) Parse(raw any, _ Mode) (any, error) {
	if raw == nil {
		if f.Bits.Has(BitRequired) {
			return nil, errRequired
		}
		if f.Bits.Has(BitNull) {
			return nil, nil
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, errors.New("must be a string")
	}
	s = f.normalize(s)
	if s == "" {
		switch {
		case f.Bits.Has(BitRequired):
			return nil, errRequired
		case f.Bits.Has(BitNull):
			return nil, nil
		}
		return "", nil
	}

	n := utf8.RuneCountInString(s)
	if f.MinLength > 0 && n < f.MinLength {
		return nil, fmt.Errorf("must be at least %d characters", f.MinLength)
	}
	if f.MaxLength > 0 && n > f.MaxLength {
		return nil, fmt.Errorf("must be at most %d characters", f.MaxLength)
	}

	switch f.Format {
	case FormatEmail:
		if !emailPattern.MatchString(s) {
			return nil, errors.New("must be a valid email address")
		}
	case FormatSlug:
		if !slugPattern.MatchString(s) {
			return nil, errors.New("may only contain lowercase letters, digits and single hyphens")
		}
	case FormatURL:
		if !validLink(s) {
			return nil, errors.New("must be an http(s) URL or a site path")
		}
	case FormatIdent:
		if !identPattern.MatchString(s) {
			return nil, errors.New("must start with a letter and contain only lowercase letters, digits and underscores")
		}
	}
	return s, nil
}

func validLink(s string) bool {
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ApplyClientToDB also writes the folded shadow column of searchable fields.
func (f *StringField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	if err := applyColumn(f, client, m, mode); err != nil {
		return err
	}
	if !f.Bits.Has(BitSearch) {
		return nil
	}
	if v, ok := m.Columns[f.Name]; ok {
		if s, isString := v.(string); isString {
			m.Columns[FoldedMember(f.Name)] = Fold(s)
		} else {
			m.Columns[FoldedMember(f.Name)] = nil
		}
	}
	return nil
}

func (f *StringField) ApplyDBToClient(db Row, client Row) {
	s, ok := toString(db[f.Name])
	if !ok && f.Bits.Has(BitNull) {
		client[f.Name] = nil
		return
	}
	client[f.Name] = s
}

func (f *StringField) Equal(a, b any) bool {
	as, aok := toString(a)
	bs, bok := toString(b)
	if f.Bits.Has(BitNull) && aok != bok {
		return false
	}
	return as == bs
}

func (f *StringField) QuickFilter(n *VarNamer, query string) Clause {
	if !f.Bits.Has(BitSearch) || strings.TrimSpace(query) == "" {
		return Clause{}
	}
	v := n.Next(f.Name)
	// rows written before the shadow column existed fall back to lowercase
	return Clause{
		Expr: fmt.Sprintf("string::contains(%s ?? string::lowercase(%s ?? ''), $%s)", FoldedMember(f.Name), f.Name, v),
		Vars: map[string]any{v: Fold(strings.TrimSpace(query))},
	}
}

func (f *StringField) ColumnSpec() ColumnSpec {
	renderer := "text"
	switch f.Format {
	case FormatMarkdown:
		renderer = "markdown"
	case FormatEmail:
		renderer = "email"
	case FormatURL:
		renderer = "link"
	}
	cs := f.columnSpec(f.Kind(), renderer)
	cs.Format = string(f.Format)
	return cs
}

// IntField is a whole-number column.
type IntField struct {
	Common
	Min     *int64
	Max     *int64
	Initial *int64
}

// Int64 returns a pointer to n, for IntField bounds.
func Int64(n int64) *int64 { return &n }

// SortOrder returns the conventional sort_order column, defaulting to 0.
func SortOrder() *IntField {
	return &IntField{
		Common:  Common{Name: "sort_order", Caption: "Sort order", Bits: BitSort, Width: 80},
		Initial: Int64(0),
	}
}

func (f *IntField) Association() Association { return AssocColumn }
func (f *IntField) Kind() Kind               { return KindInt }

func (f *IntField) Default() any {
	if f.Initial == nil {
		return nil
	}
	return *f.Initial
}

func (f *IntField) Parse(raw any, _ Mode) (any, error) {
	if raw == nil || raw == "" {
		switch {
		case f.Bits.Has(BitRequired):
			return nil, errRequired
		case f.Bits.Has(BitNull):
			return nil, nil
		case f.Initial != nil:
			return *f.Initial, nil
		}
		return int64(0), nil
	}
	n, ok := toInt64(raw)
	if !ok {
		return nil, errors.New("must be a whole number")
	}
	if f.Min != nil && n < *f.Min {
		return nil, fmt.Errorf("must be at least %d", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return nil, fmt.Errorf("must be at most %d", *f.Max)
	}
	return n, nil
}

func (f *IntField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	return applyColumn(f, client, m, mode)
}

func (f *IntField) ApplyDBToClient(db Row, client Row) {
	if n, ok := toInt64(db[f.Name]); ok {
		client[f.Name] = n
		return
	}
	client[f.Name] = nil
}

func (f *IntField) Equal(a, b any) bool {
	an, aok := toInt64(a)
	bn, bok := toInt64(b)
	return aok == bok && an == bn
}

func (f *IntField) QuickFilter(n *VarNamer, query string) Clause {
	if !f.Bits.Has(BitSearch) {
		return Clause{}
	}
	num, ok := toInt64(query)
	if !ok {
		return Clause{}
	}
	v := n.Next(f.Name)
	return Clause{Expr: fmt.Sprintf("%s = $%s", f.Name, v), Vars: map[string]any{v: num}}
}

func (f *IntField) ColumnSpec() ColumnSpec {
	cs := f.columnSpec(KindInt, "number")
	cs.Min, cs.Max = f.Min, f.Max
	return cs
}

// BoolField is a true/false column. Absent values read as false.
type BoolField struct {
	Common
}

func (f *BoolField) Association() Association { return AssocColumn }
func (f *BoolField) Kind() Kind               { return KindBool }

func (f *BoolField) Default() any {
	if f.Bits.Has(BitNull) {
		return nil
	}
	return false
}

func (f *BoolField) Parse(raw any, _ Mode) (any, error) {
	switch v := raw.(type) {
	case nil:
		if f.Bits.Has(BitNull) {
			return nil, nil
		}
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	}
	return nil, errors.New("must be true or false")
}

func (f *BoolField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	return applyColumn(f, client, m, mode)
}

func (f *BoolField) ApplyDBToClient(db Row, client Row) {
	b, _ := db[f.Name].(bool)
	client[f.Name] = b
}

func (f *BoolField) Equal(a, b any) bool {
	ab, _ := a.(bool)
	bb, _ := b.(bool)
	return ab == bb
}

func (f *BoolField) ColumnSpec() ColumnSpec {
	return f.columnSpec(KindBool, "boolean")
}

// DateTimeField is a timestamp column. Values are stored in UTC.
type DateTimeField struct {
	Common
	DateOnly bool
}

func (f *DateTimeField) Association() Association { return AssocColumn }
func (f *DateTimeField) Kind() Kind               { return KindDateTime }

func (f *DateTimeField) Parse(raw any, _ Mode) (any, error) {
	if raw == nil || raw == "" {
		if f.Bits.Has(BitRequired) {
			return nil, errRequired
		}
		return nil, nil
	}
	t, ok := toTime(raw)
	if !ok {
		return nil, errors.New("must be an RFC 3339 date/time")
	}
	t = t.UTC()
	if f.DateOnly {
		t = t.Truncate(24 * time.Hour)
	}
	return t, nil
}

func (f *DateTimeField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	return applyColumn(f, client, m, mode)
}

func (f *DateTimeField) ApplyDBToClient(db Row, client Row) {
	if t, ok := toTime(db[f.Name]); ok {
		client[f.Name] = t.UTC().Format(time.RFC3339)
		return
	}
	client[f.Name] = nil
}

func (f *DateTimeField) Equal(a, b any) bool {
	at, aok := toTime(a)
	bt, bok := toTime(b)
	return aok == bok && at.Equal(bt)
}

func (f *DateTimeField) ColumnSpec() ColumnSpec {
	if f.DateOnly {
		return f.columnSpec(KindDateTime, "date")
	}
	return f.columnSpec(KindDateTime, "datetime")
}

// CreatedAtField is stamped once when a row is created.
type CreatedAtField struct {
	Common
}

// CreatedAt returns the conventional created_at column.
func CreatedAt() *CreatedAtField {
	return &CreatedAtField{Common: Common{Name: "created_at", Caption: "Created", Bits: BitReadOnly | BitSort}}
}

func (f *CreatedAtField) Association() Association { return AssocColumn }
func (f *CreatedAtField) Kind() Kind               { return KindDateTime }

func (f *CreatedAtField) Parse(any, Mode) (any, error) { return nil, errReadOnly }

func (f *CreatedAtField) ApplyClientToDB(_ Row, m *Mutation, mode Mode) error {
	if mode == ModeNew {
		m.Columns[f.Name] = now().UTC()
	}
	return nil
}

func (f *CreatedAtField) ApplyDBToClient(db Row, client Row) {
	if t, ok := toTime(db[f.Name]); ok {
		client[f.Name] = t.UTC().Format(time.RFC3339)
		return
	}
	client[f.Name] = nil
}

func (f *CreatedAtField) Equal(a, b any) bool {
	at, _ := toTime(a)
	bt, _ := toTime(b)
	return at.Equal(bt)
}

func (f *CreatedAtField) ColumnSpec() ColumnSpec {
	return f.columnSpec(KindDateTime, "datetime")
}

// ColorField holds a palette entry name or a #rrggbb value.
type ColorField struct {
	Common
	Palette []string
}

func (f *ColorField) Association() Association { return AssocColumn }
func (f *ColorField) Kind() Kind               { return KindString }

func (f *ColorField) Parse(raw any, _ Mode) (any, error) {
	if raw == nil || raw == "" {
		if f.Bits.Has(BitRequired) {
			return nil, errRequired
		}
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, errors.New("must be a string")
	}
	s = strings.TrimSpace(s)
	if hexColor.MatchString(s) {
		return strings.ToLower(s), nil
	}
	if slices.Contains(f.Palette, s) {
		return s, nil
	}
	return nil, errors.New("must be a palette color or #rrggbb")
}

func (f *ColorField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	return applyColumn(f, client, m, mode)
}

func (f *ColorField) ApplyDBToClient(db Row, client Row) {
	if s, ok := db[f.Name].(string); ok && s != "" {
		client[f.Name] = s
		return
	}
	client[f.Name] = nil
}

func (f *ColorField) Equal(a, b any) bool {
	as, _ := a.(string)
	bs, _ := b.(string)
	return strings.EqualFold(as, bs)
}

func (f *ColorField) ColumnSpec() ColumnSpec {
	cs := f.columnSpec(KindString, "color")
	cs.Options = f.Palette
	return cs
}

// EnumField is a string column restricted to Options.
type EnumField struct {
	Common
	Options []string
	Initial string
}

func (f *EnumField) Association() Association { return AssocColumn }
func (f *EnumField) Kind() Kind               { return KindString }

func (f *EnumField) Default() any {
	if f.Initial == "" {
		return nil
	}
	return f.Initial
}

func (f *EnumField) Parse(raw any, _ Mode) (any, error) {
	if raw == nil || raw == "" {
		switch {
		case f.Bits.Has(BitRequired):
			return nil, errRequired
		case f.Initial != "":
			return f.Initial, nil
		}
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok || !slices.Contains(f.Options, s) {
		return nil, fmt.Errorf("must be one of: %s", strings.Join(f.Options, ", "))
	}
	return s, nil
}

func (f *EnumField) ApplyClientToDB(client Row, m *Mutation, mode Mode) error {
	return applyColumn(f, client, m, mode)
}

func (f *EnumField) ApplyDBToClient(db Row, client Row) {
	if s, ok := db[f.Name].(string); ok && s != "" {
		client[f.Name] = s
		return
	}
	client[f.Name] = nil
}

func (f *EnumField) Equal(a, b any) bool {
	as, _ := a.(string)
	bs, _ := b.(string)
	return as == bs
}

func (f *EnumField) ColumnSpec() ColumnSpec {
	cs := f.columnSpec(KindString, "enum")
	cs.Options = f.Options
	return cs
}

// CalculatedField is computed from the stored row and never written.
type CalculatedField struct {
	Common
	Type    Kind
	Compute func(db Row) any
}

func (f *CalculatedField) Association() Association { return AssocCalculated }
func (f *CalculatedField) Kind() Kind               { return f.Type }

func (f *CalculatedField) Parse(any, Mode) (any, error) { return nil, errReadOnly }

func (f *CalculatedField) ApplyClientToDB(Row, *Mutation, Mode) error { return nil }

func (f *CalculatedField) ApplyDBToClient(db Row, client Row) {
	client[f.Name] = f.Compute(db)
}

func (f *CalculatedField) Equal(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func (f *CalculatedField) ColumnSpec() ColumnSpec {
	cs := f.columnSpec(f.Type, "calculated")
	cs.Editable = false
	cs.Sortable = false
	cs.Filterable = false
	return cs
}
