package panel

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoPagination is returned when a first page carries neither a page
	// counter nor pagination links.
	ErrNoPagination = errors.New("could not load pages")
	// ErrNoListing is returned when a page has no listing table, grid rows
	// or pagination at all, e.g. a server error page.
	ErrNoListing = errors.New("page has no listing")
	// ErrMalformedRow marks a table row that lacks an ID or label.
	ErrMalformedRow = errors.New("malformed row")
)

// Row is one (ID, label) pair of a listing table.
type Row struct {
	ID    string
	Label string
}

// RowResult is the outcome of parsing a single table row. Malformed rows
// carry Err and are skipped by callers without failing the page.
type RowResult struct {
	Row Row
	Err error
}

// Layout tells the parser where a listing keeps its label.
type Layout struct {
	// LabelCell is the index of the <td> holding the label in rowlink tables.
	LabelCell int
	// Grid enables the older dojox grid markup as a fallback.
	Grid bool
}

var (
	DomainLayout  = Layout{LabelCell: 1, Grid: true}
	MailboxLayout = Layout{LabelCell: 0}
)

const (
	rowlinkSelector     = `tbody[data-provides="rowlink"] tr.rowlink`
	rowlinkBodySelector = `tbody[data-provides="rowlink"]`
	gridRowSelector     = `div.dojoxGridRow`
	gridLinkCell        = 4
	pageTextSelector    = `div#pagetext`
	paginationSelector  = `div.pagination ul li a`
	loginFieldSelector  = `input[name="passwd"]`
)

// Page is a fetched listing page.
type Page struct {
	doc *goquery.Document
}

// ParsePage parses the HTML of one listing page.
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Page{doc: doc}, nil
}

// IsLoginForm reports whether the panel answered with its login form, which
// is what an expired session gets instead of the requested page.
func (p *Page) IsLoginForm() bool {
	return p.doc.Find(loginFieldSelector).Length() > 0
}

// HasListing reports whether the page carries any listing structure: the
// rowlink table body, grid rows, or a pagination marker. An empty listing
// still has its table body.
func (p *Page) HasListing() bool {
	for _, sel := range []string{rowlinkBodySelector, gridRowSelector, pageTextSelector, paginationSelector} {
		if p.doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// LastPageIndex returns the highest 0-based page index of the listing.
// The "Seite x von N" counter is preferred; otherwise the real pagination
// links are counted, skipping the ellipsis placeholders that wrap a <span>.
func (p *Page) LastPageIndex() (int, error) {
	if text := p.doc.Find(pageTextSelector).First(); text.Length() > 0 {
		fields := strings.Fields(text.Text())
		if len(fields) == 0 {
			return 0, fmt.Errorf("empty page counter: %w", ErrNoPagination)
		}
		n, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("page counter %q: %w", text.Text(), ErrNoPagination)
		}
		return n, nil
	}

	links := p.doc.Find(paginationSelector).FilterFunction(func(_ int, a *goquery.Selection) bool {
		return a.Find("span").Length() == 0
	})
	if links.Length() == 0 {
		return 0, ErrNoPagination
	}
	return links.Length() - 1, nil
}

// Rows extracts the listing rows in document order.
func (p *Page) Rows(layout Layout) []RowResult {
	var out []RowResult
	p.doc.Find(rowlinkSelector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		label := cellText(cells, layout.LabelCell)
		href, _ := cells.Find("li a").First().Attr("href")
		out = append(out, newRowResult(href, label))
	})
	if len(out) > 0 || !layout.Grid {
		return out
	}

	p.doc.Find(gridRowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		label := cellText(cells, 0)
		href, _ := cells.Eq(gridLinkCell).Find("a").First().Attr("href")
		out = append(out, newRowResult(href, label))
	})
	return out
}

func cellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(i).Text())
}

func newRowResult(href, label string) RowResult {
	id, ok := idFromHref(href)
	switch {
	case !ok:
		return RowResult{Row: Row{Label: label}, Err: fmt.Errorf("%w: no ID link for %q", ErrMalformedRow, label)}
	case label == "":
		return RowResult{Row: Row{ID: id}, Err: fmt.Errorf("%w: empty label for ID %s", ErrMalformedRow, id)}
	}
	return RowResult{Row: Row{ID: id, Label: label}}
}

// idFromHref returns the value after the last "=" of a detail link such as
// "loggedSts.php?c=twtDomain&a=edit&id=123".
func idFromHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	i := strings.LastIndexByte(href, '=')
	if i < 0 {
		return "", false
	}
	id := strings.TrimSpace(href[i+1:])
	return id, id != ""
}
