package course

import (
	"fmt"
	"strings"
)

const (
	defaultLimit = 12
	maxLimit     = 50
	maxPage      = 10000
)

const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPopular   = "popular"
	SortViews     = "views"
)

var orderBy = map[string]string{
	SortPriceAsc:  "price ASC, created_at DESC",
	SortPriceDesc: "price DESC, created_at DESC",
	SortNewest:    "created_at DESC",
	SortOldest:    "created_at ASC",
	SortPopular:   "purchase_count DESC, created_at DESC",
	SortViews:     "view_count DESC, created_at DESC",
}

// Filter narrows the active catalog.
type Filter struct {
	Query      string `json:"query"`
	CategoryID string `json:"category,omitempty"`
	Tag        string `json:"tag,omitempty"`
	MinPrice   *int   `json:"minPrice,omitempty"`
	MaxPrice   *int   `json:"maxPrice,omitempty"`
	SortBy     string `json:"sortBy"`
	Page       int    `json:"-"`
	Limit      int    `json:"-"`
}

// Normalize clamps paging and falls back to relevance for unknown sorts.
func (f Filter) Normalize() Filter {
	f.Query = strings.TrimSpace(f.Query)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > maxPage {
		f.Page = maxPage
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if _, ok := orderBy[f.SortBy]; !ok {
		f.SortBy = SortRelevance
	}
	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// where renders the WHERE clause and its positional arguments.
func (f Filter) where() (string, []any) {
	conds := []string{"is_active = TRUE"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		p := arg("%" + escapeLike(f.Query) + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR subtitle ILIKE %[1]s OR description ILIKE %[1]s)", p))
	}
	if f.CategoryID != "" {
		conds = append(conds, "category_id = "+arg(f.CategoryID))
	}
	if f.Tag != "" {
		conds = append(conds, "tag = "+arg(f.Tag))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*f.MaxPrice))
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// order ranks title matches first when searching by relevance. The query
// pattern is always bound to $1 by where.
func (f Filter) order() string {
	if o, ok := orderBy[f.SortBy]; ok {
		return o
	}
	if f.Query != "" {
		return "(title ILIKE $1) DESC, created_at DESC"
	}
	return orderBy[SortNewest]
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func Paginate(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    page*limit < total,
		HasPrev:    page > 1,
	}
}

type SearchResult struct {
	Courses    []Course   `json:"courses"`
	Pagination Pagination `json:"pagination"`
	Filters    Filter     `json:"filters"`
}
