package models

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination is an offset window over a listing.
type Pagination struct {
	Skip  int
	Limit int
}

// Normalize clamps the window to a non-negative skip and a limit in
// [1, MaxPageLimit].
func (p Pagination) Normalize() Pagination {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

type PageMeta struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
}

func (p Pagination) Meta(total int) PageMeta {
	p = p.Normalize()
	return PageMeta{
		Total:   total,
		Page:    p.Skip/p.Limit + 1,
		PerPage: p.Limit,
		Pages:   (total + p.Limit - 1) / p.Limit,
	}
}
