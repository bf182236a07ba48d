package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealmungchi/marketcrawler/internal/record"
	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

// PageContext carries what the extractor needs besides the markup itself
type PageContext struct {
	// URL of the page the markup was rendered from, used to resolve
	// relative links
	URL string
	// Page is the 1-based position of this page in the crawl
	Page int
	// Region filters records to those whose name or symbol contains it
	// (case-insensitive). Empty means no filtering.
	Region string
}

// PageCursor locates the next page of a paginated crawl.
// A nil cursor terminates the crawl.
type PageCursor struct {
	URL  string
	Page int
}

// Selectors configures where records and the pagination link live in the markup
type Selectors struct {
	// Row matches one record container. Rows without enough cells are skipped.
	Row string
	// Symbol, Name, Price optionally override the positional cell layout
	// (first three <td> children) with explicit selectors inside a row.
	Symbol string
	Name   string
	Price  string
	// Next matches the "next page" link
	Next string
}

// DefaultSelectors matches plain listing tables with a rel=next pagination link
func DefaultSelectors() Selectors {
	return Selectors{Row: "tr", Next: "a[rel=next]"}
}

// Extractor produces raw records and a next-page cursor from rendered markup.
// It is a pure function of markup and context: no network, no browser.
type Extractor struct {
	selectors Selectors
}

// New creates an extractor with the given selectors
func New(selectors Selectors) *Extractor {
	if selectors.Row == "" {
		selectors.Row = "tr"
	}
	return &Extractor{selectors: selectors}
}

// Extract parses the markup and returns the raw records found plus the
// cursor for the next page, or nil when the page has no next link.
// Missing nodes yield missing fields, never an error; only markup that
// cannot be parsed at all fails.
func (e *Extractor) Extract(markup string, ctx PageContext) ([]record.RawRecord, *PageCursor, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, nil, errors.NewUnparseableMarkup(ctx.URL, nil)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, nil, errors.NewUnparseableMarkup(ctx.URL, err)
	}

	base, _ := url.Parse(ctx.URL)

	records := e.extractRows(doc, base, ctx.Region)
	if len(records) == 0 {
		// Pages without a listing table sometimes carry the records as
		// bare links; fall back to anchors the way static listings do
		records = e.extractAnchors(doc, base, ctx.Region)
	}

	cursor := e.nextCursor(doc, base, ctx)
	return records, cursor, nil
}

// extractRows pulls one record per row selection
func (e *Extractor) extractRows(doc *goquery.Document, base *url.URL, region string) []record.RawRecord {
	var records []record.RawRecord

	doc.Find(e.selectors.Row).Each(func(_ int, row *goquery.Selection) {
		raw := e.extractRow(row, base)
		if raw == nil {
			return
		}
		if !matchesRegion(raw, region) {
			return
		}
		records = append(records, raw)
	})

	return records
}

// extractRow maps one row to a raw record, positionally from <td> cells
// unless explicit field selectors are configured
func (e *Extractor) extractRow(row *goquery.Selection, base *url.URL) record.RawRecord {
	raw := record.RawRecord{}

	if e.selectors.Symbol != "" || e.selectors.Name != "" || e.selectors.Price != "" {
		setIfFound(raw, "symbol", row, e.selectors.Symbol)
		setIfFound(raw, "name", row, e.selectors.Name)
		setIfFound(raw, "price", row, e.selectors.Price)
	} else {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return nil
		}
		raw["symbol"] = text(cells.Eq(0))
		raw["name"] = text(cells.Eq(1))
		raw["price"] = text(cells.Eq(2))
	}

	if len(raw) == 0 {
		return nil
	}

	if href, ok := row.Find("a[href]").First().Attr("href"); ok {
		raw["url"] = resolveURL(base, href)
	}

	return raw
}

// extractAnchors is the link fallback: every non-empty, non-fragment
// anchor becomes a record with just a name and url
func (e *Extractor) extractAnchors(doc *goquery.Document, base *url.URL, region string) []record.RawRecord {
	var records []record.RawRecord

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		name := text(a)
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if name == "" || href == "" || strings.HasPrefix(href, "#") {
			return
		}

		raw := record.RawRecord{"name": name, "url": resolveURL(base, href)}
		if !matchesRegion(raw, region) {
			return
		}
		records = append(records, raw)
	})

	return records
}

// nextCursor finds the pagination link. Extraction is idempotent:
// identical markup always yields an identical cursor.
func (e *Extractor) nextCursor(doc *goquery.Document, base *url.URL, ctx PageContext) *PageCursor {
	if e.selectors.Next == "" {
		return nil
	}

	href, ok := doc.Find(e.selectors.Next).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil
	}

	return &PageCursor{
		URL:  resolveURL(base, strings.TrimSpace(href)),
		Page: ctx.Page + 1,
	}
}

// matchesRegion applies the region filter against name and symbol
func matchesRegion(raw record.RawRecord, region string) bool {
	if region == "" {
		return true
	}
	needle := strings.ToLower(region)
	return strings.Contains(strings.ToLower(raw["name"]), needle) ||
		strings.Contains(strings.ToLower(raw["symbol"]), needle)
}

// setIfFound stores the trimmed text of the first match, leaving the
// field absent when the selector matches nothing
func setIfFound(raw record.RawRecord, field string, s *goquery.Selection, selector string) {
	if selector == "" {
		return
	}
	sel := s.Find(selector)
	if sel.Length() == 0 {
		return
	}
	raw[field] = text(sel.First())
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
