package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmungchi/marketcrawler/internal/record"
	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

func testSchema() record.Schema {
	return record.DefaultSchema()
}

func TestNormalizeTrimsAndCoerces(t *testing.T) {
	n := New(testSchema())

	rec, err := n.Normalize(record.RawRecord{
		"symbol": "  PETR4 ",
		"name":   " Petrobras \n",
		"price":  "R$ 1,234.56",
		"url":    "https://example.com/petr4",
	})
	require.NoError(t, err)

	assert.Equal(t, "PETR4", rec["symbol"])
	assert.Equal(t, "Petrobras", rec["name"])
	assert.Equal(t, 1234.56, rec["price"])
	assert.Equal(t, "https://example.com/petr4", rec["url"])
}

func TestNormalizeFillsDefaults(t *testing.T) {
	n := New(testSchema())

	rec, err := n.Normalize(record.RawRecord{"name": "Vale"})
	require.NoError(t, err)

	// Every declared field must be present, default-filled if missing
	assert.Equal(t, "", rec["symbol"])
	assert.Equal(t, float64(0), rec["price"])
	assert.Equal(t, "", rec["url"])
	assert.Len(t, rec, 4)
}

func TestNormalizeRequiredFieldMissing(t *testing.T) {
	n := New(testSchema())

	_, err := n.Normalize(record.RawRecord{"symbol": "VALE3", "price": "10"})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	// Whitespace-only counts as missing
	_, err = n.Normalize(record.RawRecord{"name": "   "})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestNormalizeUnparseableOptionalFallsBack(t *testing.T) {
	n := New(testSchema())

	rec, err := n.Normalize(record.RawRecord{"name": "Itau", "price": "N/A"})
	require.NoError(t, err)
	assert.Equal(t, float64(0), rec["price"])
}

func TestNormalizeDropsUnknownFields(t *testing.T) {
	n := New(testSchema())

	rec, err := n.Normalize(record.RawRecord{"name": "Ambev", "sector": "beverages"})
	require.NoError(t, err)
	_, ok := rec["sector"]
	assert.False(t, ok)
}

func TestNormalizeDeterministic(t *testing.T) {
	n := New(testSchema())
	raw := record.RawRecord{"symbol": "ABEV3", "name": "Ambev", "price": "$13.37"}

	first, err := n.Normalize(raw)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := n.Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNormalizeBoolAndInt(t *testing.T) {
	schema := record.Schema{Fields: []record.FieldSpec{
		{Name: "name", Type: record.String, Required: true},
		{Name: "active", Type: record.Bool, Default: false},
		{Name: "volume", Type: record.Int, Default: int64(0)},
	}}
	n := New(schema)

	rec, err := n.Normalize(record.RawRecord{"name": "x", "active": "TRUE", "volume": "1,200"})
	require.NoError(t, err)
	assert.Equal(t, true, rec["active"])
	assert.Equal(t, int64(1200), rec["volume"])
}
