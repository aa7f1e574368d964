package core

import "strings"

// FieldKind is the sum type replacing the source's dynamic type tag (a
// string such as "INTEGER" or a constructor function). Each kind carries
// only the parameters that are meaningful for it; dialect adapters switch
// on Kind to render the correct DDL fragment.
type FieldKind string

const (
	KindInteger  FieldKind = "integer"
	KindDecimal  FieldKind = "decimal"
	KindFloat    FieldKind = "float"
	KindVarchar  FieldKind = "varchar"
	KindText     FieldKind = "text"
	KindEnum     FieldKind = "enum"
	KindDate     FieldKind = "date"
	KindDateTime FieldKind = "datetime"
	KindBlob     FieldKind = "blob"
	KindBoolean  FieldKind = "boolean"
	KindUUID     FieldKind = "uuid"
	KindJSON     FieldKind = "json"
	KindXML      FieldKind = "xml"
)

// Field is a column definition. It is constructed once via one of the
// New*Field functions and never mutated afterward — the constructors
// validate and copy their option structs rather than accepting a mutable
// shared default, replacing the source's "mutable defaults propagated by
// object spread" pattern (spec.md §9).
type Field struct {
	Kind FieldKind

	// Decimal-only.
	Precision int
	Scale     int

	// Varchar-only.
	MaxLength int

	// Enum-only: an ordered, non-empty sequence of distinct choices.
	Choices []string

	Nullable      bool
	Default       *FieldDefault
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
	Comment       string

	// HelpText is author-facing documentation. It is never emitted to SQL
	// or the snapshot (spec.md §3).
	HelpText string
}

// FieldDefault is either a quoted literal or a recognized SQL function
// token (CURRENT_TIMESTAMP, gen_random_uuid(), ...) emitted unquoted.
type FieldDefault struct {
	Literal  string
	IsSQLFn  bool
	sqlToken string
}

// SQLDefault constructs a default that is emitted verbatim as a SQL token,
// e.g. CURRENT_TIMESTAMP or gen_random_uuid().
func SQLDefault(token string) *FieldDefault {
	return &FieldDefault{IsSQLFn: true, sqlToken: token}
}

// LiteralDefault constructs a default emitted as a dialect-quoted literal.
func LiteralDefault(value string) *FieldDefault {
	return &FieldDefault{Literal: value}
}

// Token returns the SQL function token for a FieldDefault built via
// SQLDefault. It is meaningless when IsSQLFn is false.
func (d *FieldDefault) Token() string {
	if d == nil {
		return ""
	}
	return d.sqlToken
}

// FieldOption configures a Field under construction. Options are applied in
// order by the New*Field constructors.
type FieldOption func(*Field)

func Nullable() FieldOption        { return func(f *Field) { f.Nullable = true } }
func Unique() FieldOption          { return func(f *Field) { f.Unique = true } }
func PrimaryKey() FieldOption      { return func(f *Field) { f.PrimaryKey = true } }
func AutoIncrement() FieldOption   { return func(f *Field) { f.AutoIncrement = true } }
func Comment(c string) FieldOption { return func(f *Field) { f.Comment = c } }
func HelpText(h string) FieldOption { return func(f *Field) { f.HelpText = h } }
func WithDefault(d *FieldDefault) FieldOption {
	return func(f *Field) { f.Default = d }
}

func newField(kind FieldKind, opts ...FieldOption) *Field {
	f := &Field{Kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewIntegerField constructs an integer column. AutoIncrement implies a
// single-column primary key; that invariant is enforced by Model
// construction (composite PK + auto-increment is rejected there and, for
// the differ's CREATE TABLE path, in the differ itself per spec.md §4.5).
func NewIntegerField(opts ...FieldOption) *Field {
	f := newField(KindInteger, opts...)
	if f.AutoIncrement {
		f.PrimaryKey = true
	}
	return f
}

// NewDecimalField constructs a fixed-point decimal(precision, scale) column.
func NewDecimalField(precision, scale int, opts ...FieldOption) *Field {
	f := newField(KindDecimal, opts...)
	f.Precision = precision
	f.Scale = scale
	return f
}

// NewFloatField constructs a floating-point column.
func NewFloatField(opts ...FieldOption) *Field {
	return newField(KindFloat, opts...)
}

// NewVarcharField constructs a varchar(maxLength) column.
func NewVarcharField(maxLength int, opts ...FieldOption) *Field {
	f := newField(KindVarchar, opts...)
	f.MaxLength = maxLength
	return f
}

// NewTextField constructs an unbounded text column.
func NewTextField(opts ...FieldOption) *Field {
	return newField(KindText, opts...)
}

// NewEnumField constructs an enum column. choices must be a non-empty
// ordered sequence of distinct strings; if a default is supplied via
// WithDefault(LiteralDefault(v)) it must appear in choices. Violations
// return InvalidFieldError rather than panicking, per spec.md §9's
// "replace thrown control flow with result/error values" note.
func NewEnumField(name string, choices []string, opts ...FieldOption) (*Field, error) {
	if len(choices) == 0 {
		return nil, &InvalidFieldError{Field: name, Reason: "enum choices must be a non-empty ordered sequence"}
	}
	seen := make(map[string]struct{}, len(choices))
	for _, c := range choices {
		if _, dup := seen[c]; dup {
			return nil, &InvalidFieldError{Field: name, Reason: "enum choices must be distinct, got duplicate " + c}
		}
		seen[c] = struct{}{}
	}
	f := newField(KindEnum, opts...)
	f.Choices = append([]string(nil), choices...)
	if f.Default != nil && !f.Default.IsSQLFn {
		if _, ok := seen[f.Default.Literal]; !ok {
			return nil, &InvalidFieldError{Field: name, Reason: "enum default " + f.Default.Literal + " is not among choices"}
		}
	}
	return f, nil
}

// NewDateField constructs a date column.
func NewDateField(opts ...FieldOption) *Field { return newField(KindDate, opts...) }

// NewDateTimeField constructs a datetime column.
func NewDateTimeField(opts ...FieldOption) *Field { return newField(KindDateTime, opts...) }

// NewBlobField constructs a binary-blob column.
func NewBlobField(opts ...FieldOption) *Field { return newField(KindBlob, opts...) }

// NewBooleanField constructs a boolean column.
func NewBooleanField(opts ...FieldOption) *Field { return newField(KindBoolean, opts...) }

// NewUUIDField constructs a uuid column.
func NewUUIDField(opts ...FieldOption) *Field { return newField(KindUUID, opts...) }

// NewJSONField constructs a json column.
func NewJSONField(opts ...FieldOption) *Field { return newField(KindJSON, opts...) }

// NewXMLField constructs an xml column.
func NewXMLField(opts ...FieldOption) *Field { return newField(KindXML, opts...) }

// Validate enforces invariants that depend on more than one attribute:
// auto-increment implies integer type (enforced structurally by which
// constructor set it, but re-checked here since FieldOption is exported and
// nothing stops a caller from composing AutoIncrement() with the wrong
// constructor).
func (f *Field) Validate(name string) error {
	if f.AutoIncrement && f.Kind != KindInteger {
		return &InvalidFieldError{Field: name, Reason: "auto_increment requires an integer field"}
	}
	if f.Kind == KindEnum && len(f.Choices) == 0 {
		return &InvalidFieldError{Field: name, Reason: "enum choices must be a non-empty ordered sequence"}
	}
	return nil
}

// canonicalView returns the deterministic map used for checksumming and the
// on-disk snapshot. HelpText is intentionally excluded (spec.md §3).
func (f *Field) canonicalView() map[string]any {
	v := map[string]any{
		"kind":     string(f.Kind),
		"nullable": f.Nullable,
	}
	if f.Kind == KindDecimal {
		v["precision"] = f.Precision
		v["scale"] = f.Scale
	}
	if f.Kind == KindVarchar {
		v["maxLength"] = f.MaxLength
	}
	if f.Kind == KindEnum {
		v["choices"] = append([]string(nil), f.Choices...)
	}
	if f.Default != nil {
		if f.Default.IsSQLFn {
			v["default"] = map[string]any{"sql": f.Default.sqlToken}
		} else {
			v["default"] = map[string]any{"literal": f.Default.Literal}
		}
	}
	if f.Unique {
		v["unique"] = true
	}
	if f.PrimaryKey {
		v["primaryKey"] = true
	}
	if f.AutoIncrement {
		v["autoIncrement"] = true
	}
	if strings.TrimSpace(f.Comment) != "" {
		v["comment"] = f.Comment
	}
	return v
}
