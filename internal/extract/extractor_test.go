package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

const tableMarkup = `<html><body>
	<table>
		<tr><th>Symbol</th><th>Name</th><th>Price</th></tr>
		<tr><td>PETR4</td><td>Petrobras Brazil</td><td>38.12</td></tr>
		<tr><td>VALE3</td><td><a href="/quote/vale3">Vale Brazil</a></td><td>61.50</td></tr>
		<tr><td>AAPL</td><td>Apple Inc</td><td>190.01</td></tr>
	</table>
	<a rel="next" href="/list?page=2">next</a>
</body></html>`

func TestExtractTableRows(t *testing.T) {
	e := New(DefaultSelectors())

	records, cursor, err := e.Extract(tableMarkup, PageContext{URL: "https://example.com/list", Page: 1})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "PETR4", records[0]["symbol"])
	assert.Equal(t, "Petrobras Brazil", records[0]["name"])
	assert.Equal(t, "38.12", records[0]["price"])

	// Row anchor resolved against the page URL
	assert.Equal(t, "https://example.com/quote/vale3", records[1]["url"])
	// Rows without an anchor have no url field at all
	_, hasURL := records[0]["url"]
	assert.False(t, hasURL)

	require.NotNil(t, cursor)
	assert.Equal(t, "https://example.com/list?page=2", cursor.URL)
	assert.Equal(t, 2, cursor.Page)
}

func TestExtractRegionFilter(t *testing.T) {
	e := New(DefaultSelectors())

	records, _, err := e.Extract(tableMarkup, PageContext{URL: "https://example.com/list", Page: 1, Region: "brazil"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "PETR4", records[0]["symbol"])
	assert.Equal(t, "VALE3", records[1]["symbol"])
}

func TestExtractAnchorFallback(t *testing.T) {
	markup := `<html><body>
		<a href="/companies/petrobras">Petrobras Brazil</a>
		<a href="#skip">Petrobras fragment</a>
		<a href="/companies/apple">Apple Inc</a>
		<a href="/empty"></a>
	</body></html>`
	e := New(DefaultSelectors())

	records, cursor, err := e.Extract(markup, PageContext{URL: "https://example.com/", Page: 1, Region: "Brazil"})
	require.NoError(t, err)
	assert.Nil(t, cursor)

	require.Len(t, records, 1)
	assert.Equal(t, "Petrobras Brazil", records[0]["name"])
	assert.Equal(t, "https://example.com/companies/petrobras", records[0]["url"])
}

func TestExtractMissingNodesAreNotErrors(t *testing.T) {
	markup := `<html><body><table>
		<tr><td>SYM</td><td></td><td>10</td></tr>
		<tr><td>only one cell</td></tr>
	</table></body></html>`
	e := New(DefaultSelectors())

	records, _, err := e.Extract(markup, PageContext{URL: "https://example.com", Page: 1})
	require.NoError(t, err)
	// The short row is skipped; the empty cell yields an empty field
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0]["name"])
}

func TestExtractFieldSelectors(t *testing.T) {
	markup := `<html><body>
		<div class="quote">
			<span class="sym">ITUB4</span>
			<span class="label">Itau Brazil</span>
			<span class="value">27.80</span>
			<a href="/q/itub4">details</a>
		</div>
	</body></html>`
	e := New(Selectors{Row: "div.quote", Symbol: ".sym", Name: ".label", Price: ".value"})

	records, _, err := e.Extract(markup, PageContext{URL: "https://example.com", Page: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ITUB4", records[0]["symbol"])
	assert.Equal(t, "Itau Brazil", records[0]["name"])
	assert.Equal(t, "27.80", records[0]["price"])
	assert.Equal(t, "https://example.com/q/itub4", records[0]["url"])
}

func TestExtractCursorIdempotent(t *testing.T) {
	e := New(DefaultSelectors())
	ctx := PageContext{URL: "https://example.com/list", Page: 1}

	_, first, err := e.Extract(tableMarkup, ctx)
	require.NoError(t, err)
	_, second, err := e.Extract(tableMarkup, ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractEmptyMarkup(t *testing.T) {
	e := New(DefaultSelectors())

	_, _, err := e.Extract("   \n  ", PageContext{URL: "https://example.com", Page: 1})
	require.Error(t, err)
	assert.Equal(t, errors.KindUnparseableMarkup, errors.KindOf(err))
}
