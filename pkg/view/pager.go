// Package view derives the paged, severity-narrowed slice of the recent
// activity window that a dashboard table displays.
package view

import (
	"strings"
	"sync"

	"github.com/seclens/threatview/pkg/events"
)

// DefaultPageSize is the number of rows shown per page.
const DefaultPageSize = 5

// Pager tracks the current page and severity narrowing over the recent
// events window. Page numbers are 1-indexed and clamped to the available
// range; changing the severity resets to the first page.
type Pager struct {
	mu       sync.Mutex
	pageSize int
	page     int
	severity string // empty = all severities
}

// NewPager creates a Pager. A non-positive size falls back to DefaultPageSize.
func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{pageSize: pageSize, page: 1}
}

// SetSeverity narrows the view to one severity ("" clears the narrowing)
// and resets to page 1.
func (p *Pager) SetSeverity(severity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.severity = strings.ToLower(severity)
	p.page = 1
}

// Severity returns the current severity narrowing.
func (p *Pager) Severity() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.severity
}

// SetPage requests a page. Out-of-range requests are clamped on the next
// Page call rather than rejected.
func (p *Pager) SetPage(page int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page < 1 {
		page = 1
	}
	p.page = page
}

// Narrowed returns the subset of list matching the current severity.
func (p *Pager) Narrowed(list []events.ActivityEvent) []events.ActivityEvent {
	p.mu.Lock()
	severity := p.severity
	p.mu.Unlock()

	if severity == "" {
		return list
	}
	matched := []events.ActivityEvent{}
	for _, e := range list {
		if string(e.Status) == severity {
			matched = append(matched, e)
		}
	}
	return matched
}

// Page returns the current page of the severity-narrowed list and the total
// page count. Total pages is ceil(n/pageSize) with a floor of 1; the current
// page is clamped into [1, totalPages].
func (p *Pager) Page(list []events.ActivityEvent) ([]events.ActivityEvent, int) {
	narrowed := p.Narrowed(list)

	p.mu.Lock()
	defer p.mu.Unlock()

	total := (len(narrowed) + p.pageSize - 1) / p.pageSize
	if total < 1 {
		total = 1
	}
	if p.page > total {
		p.page = total
	}
	if p.page < 1 {
		p.page = 1
	}

	start := (p.page - 1) * p.pageSize
	if start >= len(narrowed) {
		return []events.ActivityEvent{}, total
	}
	end := start + p.pageSize
	if end > len(narrowed) {
		end = len(narrowed)
	}
	return narrowed[start:end], total
}

// CurrentPage returns the page number that the next Page call will serve,
// before clamping.
func (p *Pager) CurrentPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}
