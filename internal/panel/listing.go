package panel

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

// Panel controllers.
const (
	ControllerDomain  = "twtDomain"
	ControllerMailbox = "twtEmailAddress"
)

type scanSpec struct {
	query  func(page int) url.Values
	layout Layout
	// paced scans wait PageDelay between page fetches.
	paced bool
}

// scan walks the pages of a listing in order, starting at page 0, and hands
// each page's rows to visit until visit returns false or the last page has
// been processed.
func (c *Client) scan(ctx context.Context, spec scanSpec, visit func(rows []Row) bool) error {
	page, err := c.fetch(ctx, spec.query(0))
	if err != nil {
		return err
	}
	last, err := page.LastPageIndex()
	if err != nil {
		return fmt.Errorf("%s: %w", spec.query(0).Get("c"), err)
	}

	var limiter *rate.Limiter
	if spec.paced && c.cfg.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.cfg.PageDelay), 1)
		limiter.Allow()
	}

	for i := 0; ; i++ {
		if i > 0 {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			if page, err = c.fetch(ctx, spec.query(i)); err != nil {
				return err
			}
			if !page.HasListing() {
				return fmt.Errorf("%s page %d: %w", spec.query(i).Get("c"), i, ErrNoListing)
			}
		}
		if !visit(c.rows(page, spec.layout, i)) || i >= last {
			return nil
		}
	}
}

func (c *Client) rows(page *Page, layout Layout, index int) []Row {
	results := page.Rows(layout)
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			c.logger.Debug().Err(r.Err).Int("page", index).Msg("skipping row")
			continue
		}
		rows = append(rows, r.Row)
	}
	return rows
}

func domainListQuery(page int) url.Values {
	return url.Values{
		"c":  {ControllerDomain},
		"p":  {strconv.Itoa(page)},
		"sc": {""},
		"s":  {""},
	}
}

func domainLookupQuery(page int) url.Values {
	return url.Values{
		"c": {ControllerDomain},
		"p": {strconv.Itoa(page)},
	}
}

func mailboxListQuery(domainID string) func(int) url.Values {
	return func(page int) url.Values {
		return url.Values{
			"c":           {ControllerMailbox},
			"refIdDomain": {domainID},
			"p":           {strconv.Itoa(page)},
		}
	}
}

// ListDomains returns every domain of the account as (ID, name) rows in
// page order.
func (c *Client) ListDomains(ctx context.Context) ([]Row, error) {
	var rows []Row
	err := c.withSession(ctx, func(ctx context.Context) error {
		rows = nil
		return c.scan(ctx, scanSpec{query: domainListQuery, layout: DomainLayout}, func(page []Row) bool {
			rows = append(rows, page...)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return rows, nil
}

// FindDomainID looks up the panel ID of the domain whose name equals name.
// It stops at the first page containing a match; found is false when no
// page lists the domain.
func (c *Client) FindDomainID(ctx context.Context, name string) (id string, found bool, err error) {
	err = c.withSession(ctx, func(ctx context.Context) error {
		id, found = "", false
		spec := scanSpec{query: domainLookupQuery, layout: DomainLayout, paced: true}
		return c.scan(ctx, spec, func(page []Row) bool {
			for _, r := range page {
				if r.Label == name {
					id, found = r.ID, true
					return false
				}
			}
			return true
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("find domain %s: %w", name, err)
	}
	return id, found, nil
}

// ListMailboxes returns the addresses of the domain with the given panel ID.
func (c *Client) ListMailboxes(ctx context.Context, domainID string) ([]Row, error) {
	var rows []Row
	err := c.withSession(ctx, func(ctx context.Context) error {
		rows = nil
		return c.scan(ctx, scanSpec{query: mailboxListQuery(domainID), layout: MailboxLayout}, func(page []Row) bool {
			rows = append(rows, page...)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list mailboxes of domain %s: %w", domainID, err)
	}
	return rows, nil
}

// ListMailboxesOfDomain resolves a domain name and lists its addresses.
// found is false when the domain is unknown to the panel.
func (c *Client) ListMailboxesOfDomain(ctx context.Context, name string) (rows []Row, found bool, err error) {
	id, found, err := c.FindDomainID(ctx, name)
	if err != nil || !found {
		return nil, found, err
	}
	c.logger.Debug().Str("domain", name).Str("id", id).Msg("domain resolved")
	rows, err = c.ListMailboxes(ctx, id)
	return rows, true, err
}
