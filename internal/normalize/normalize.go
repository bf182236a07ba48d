package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dealmungchi/marketcrawler/internal/record"
	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

// Normalizer turns raw scraped records into canonical records
// according to a fixed schema. It is pure and deterministic.
type Normalizer struct {
	schema record.Schema
}

// New creates a normalizer for the given schema
func New(schema record.Schema) *Normalizer {
	return &Normalizer{schema: schema}
}

// Schema returns the schema the normalizer validates against
func (n *Normalizer) Schema() record.Schema {
	return n.schema
}

// Normalize validates and coerces a raw record against the schema.
// Unknown input fields are dropped. Optional fields that are absent or
// unparseable fall back to their schema default; a required field that
// is absent or unparseable fails the whole record.
func (n *Normalizer) Normalize(raw record.RawRecord) (record.CanonicalRecord, error) {
	out := make(record.CanonicalRecord, len(n.schema.Fields))

	for _, spec := range n.schema.Fields {
		rawVal, present := raw[spec.Name]
		rawVal = strings.TrimSpace(rawVal)

		if !present || rawVal == "" {
			if spec.Required {
				return nil, errors.NewValidation(spec.Name, "required field is missing")
			}
			out[spec.Name] = spec.Default
			continue
		}

		coerced, err := coerce(rawVal, spec.Type)
		if err != nil {
			if spec.Required {
				return nil, errors.NewValidation(spec.Name, err.Error())
			}
			out[spec.Name] = spec.Default
			continue
		}
		out[spec.Name] = coerced
	}

	return out, nil
}

// coerce converts a trimmed scraped string into the field's declared type
func coerce(val string, t record.FieldType) (any, error) {
	switch t {
	case record.String:
		return val, nil
	case record.Float:
		f, err := strconv.ParseFloat(cleanNumeric(val), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as number", val)
		}
		return f, nil
	case record.Int:
		i, err := strconv.ParseInt(cleanNumeric(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as integer", val)
		}
		return i, nil
	case record.Bool:
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as boolean", val)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

// cleanNumeric strips currency symbols, thousands separators and
// surrounding noise from scraped numbers ("R$ 1,234.56" -> "1234.56")
func cleanNumeric(val string) string {
	var b strings.Builder
	for _, r := range val {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			b.WriteRune(r)
		}
	}
	return b.String()
}
