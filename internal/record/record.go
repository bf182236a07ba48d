package record

// RawRecord is one record as scraped: field name to string value.
// Fields the extractor could not find are simply absent.
type RawRecord map[string]string

// CanonicalRecord is a normalized record conforming to a Schema:
// every declared field is present with its declared type.
type CanonicalRecord map[string]any

// FieldType is the target type a field is coerced to
type FieldType string

const (
	String FieldType = "string"
	Float  FieldType = "float"
	Int    FieldType = "int"
	Bool   FieldType = "bool"
)

// FieldSpec declares one schema field
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Default  any
}

// Schema is the ordered list of fields a canonical record carries.
// Field order determines output column order.
type Schema struct {
	Fields []FieldSpec
}

// Columns returns the field names in declared order
func (s Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// DefaultSchema is the market-listing schema: symbol, name, price, url.
// Only the name is required; everything else falls back to its default.
func DefaultSchema() Schema {
	return Schema{Fields: []FieldSpec{
		{Name: "symbol", Type: String, Default: ""},
		{Name: "name", Type: String, Required: true},
		{Name: "price", Type: Float, Default: float64(0)},
		{Name: "url", Type: String, Default: ""},
	}}
}
