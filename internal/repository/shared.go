package repository

// Pagination holds pagination parameters for listing entries.
type Pagination struct {
	PageNo   int32
	PageSize int32
}

func (p *Pagination) Offset() int32 { return (p.PageNo - 1) * p.PageSize }

// Page slices items according to the pagination window. A zero page size
// returns everything.
func Page[T any](items []T, p Pagination) []T {
	if p.PageSize <= 0 {
		return items
	}
	if p.PageNo <= 0 {
		p.PageNo = 1
	}
	start := int(p.Offset())
	if start >= len(items) {
		return nil
	}
	end := start + int(p.PageSize)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// FilterOrder carries the raw filter expression of a list request.
type FilterOrder struct {
	Filter  string
	OrderBy string
}

func (fo *FilterOrder) GetFilter() string { return fo.Filter }

func (fo *FilterOrder) GetOrderBy() string { return fo.OrderBy }

// ListCommentaryQuery is the admin listing request.
type ListCommentaryQuery struct {
	Pagination
	FilterOrder
}
