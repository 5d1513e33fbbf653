package audit

import "time"

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize far from integer overflow.
	MaxPage = 100_000
)

// TimelineFilters narrows a timeline query.
type TimelineFilters struct {
	From        time.Time
	To          time.Time
	UserID      string
	EventType   EventType
	RoutePrefix string
	Page        int
	PageSize    int
}

func (f TimelineFilters) normalized() (page, pageSize int) {
	pageSize = f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page = f.Page
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return page, pageSize
}

// PagingInfo is the paging metadata returned with a timeline page.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}

// paginate trims the look-ahead row fetched to detect a next page.
func paginate(entries []Entry, page, pageSize int) Result {
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}
}
