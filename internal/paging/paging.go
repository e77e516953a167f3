package paging

import "github.com/KaramelBytes/cleanloom-cli/internal/table"

// DefaultPageSize is the number of rows per page when none is configured.
const DefaultPageSize = 20

// Pager presents fixed-size pages over one canonical row set.
type Pager struct {
	size          int
	source        table.Table
	showAll       bool
	page          int
	reportedTotal int
}

// Window is the slice of rows visible on the current page.
type Window struct {
	Page       int
	TotalPages int
	// First and Last are 1-based and inclusive; both are 0 when there are no rows.
	First int
	Last  int
	Total int
	Rows  [][]table.Cell
}

func New(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{size: pageSize, page: 1}
}

func (p *Pager) PageSize() int { return p.size }

// SetSource replaces the row set and returns to page 1.
func (p *Pager) SetSource(t table.Table) {
	p.source = t
	p.reportedTotal = 0
	p.page = 1
}

// SetShowAll switches between paged and whole-set display, returning to page 1.
func (p *Pager) SetShowAll(v bool) {
	p.showAll = v
	p.page = 1
}

func (p *Pager) ShowAll() bool { return p.showAll }

// SetReportedTotal records the row count an analysis reported for the full
// dataset; the preview itself may carry fewer rows.
func (p *Pager) SetReportedTotal(n int) {
	if n < 0 {
		n = 0
	}
	p.reportedTotal = n
}

// Total is the row count shown to the user.
func (p *Pager) Total() int {
	return max(len(p.source.Rows), p.reportedTotal)
}

func (p *Pager) TotalPages() int {
	n := len(p.source.Rows)
	if p.showAll || n == 0 {
		return 1
	}
	return (n + p.size - 1) / p.size
}

func (p *Pager) Page() int { return p.page }

// GoTo moves to page n clamped into [1, TotalPages].
func (p *Pager) GoTo(n int) {
	p.page = min(max(n, 1), p.TotalPages())
}

func (p *Pager) Next() { p.GoTo(p.page + 1) }

func (p *Pager) Prev() { p.GoTo(p.page - 1) }

func (p *Pager) Window() Window {
	rows := p.source.Rows
	w := Window{Page: p.page, TotalPages: p.TotalPages(), Total: p.Total()}
	if len(rows) == 0 {
		w.Rows = [][]table.Cell{}
		return w
	}
	start, end := 0, len(rows)
	if !p.showAll {
		start = (p.page - 1) * p.size
		end = min(start+p.size, len(rows))
	}
	w.First = start + 1
	w.Last = end
	w.Rows = rows[start:end]
	return w
}
