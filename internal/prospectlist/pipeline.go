// Package prospectlist filters, sorts and paginates an in-memory prospect
// list, and labels statuses and priorities for display.
package prospectlist

import (
	"sort"
	"strings"

	"github.com/kalambet/prospekt/internal/storage"
)

// PageSize is the number of rows per page.
const PageSize = 20

type SortField string

const (
	SortCompany      SortField = "company_name"
	SortContact      SortField = "contact_name"
	SortStatus       SortField = "status"
	SortPriority     SortField = "priority"
	SortLastExchange SortField = "last_exchange"
)

// ParseSortField accepts the field names above; anything else is rejected.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(s); f {
	case SortCompany, SortContact, SortStatus, SortPriority, SortLastExchange:
		return f, true
	}
	return "", false
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is a field and a direction. The zero value sorts by company name
// ascending.
type Sort struct {
	Field SortField
	Dir   Direction
}

// Toggle returns the sort after the user picks field: the same field flips
// direction, a new field starts ascending.
func (s Sort) Toggle(field SortField) Sort {
	cur := s.normalized()
	if cur.Field == field {
		if cur.Dir == Asc {
			return Sort{Field: field, Dir: Desc}
		}
		return Sort{Field: field, Dir: Asc}
	}
	return Sort{Field: field, Dir: Asc}
}

func (s Sort) normalized() Sort {
	if s.Field == "" {
		s.Field = SortCompany
	}
	if s.Dir != Desc {
		s.Dir = Asc
	}
	return s
}

// Filter narrows the list. Empty fields and "all" do not filter.
type Filter struct {
	Search   string
	Status   string
	Priority string
}

// Query is one full pipeline run.
type Query struct {
	Filter
	Sort Sort
	// Page is 1-based; values below 1 mean the first page.
	Page int
}

// Page is one slice of the processed list.
type Page struct {
	Items      []storage.Prospect `json:"items"`
	Page       int                `json:"page"`
	TotalPages int                `json:"total_pages"`
	// Total counts rows after filtering.
	Total int `json:"total"`
}

var priorityRank = map[string]int{"urgent": 4, "high": 3, "medium": 2, "low": 1}

// PriorityRank orders priorities; unknown values rank 0.
func PriorityRank(p string) int { return priorityRank[p] }

// Run filters, sorts and paginates list without modifying it.
func Run(list []storage.Prospect, q Query) Page {
	return Paginate(SortList(Apply(list, q.Filter), q.Sort), q.Page)
}

// Apply keeps prospects matching every set filter. Search is a
// case-insensitive substring match over company, contact and email.
func Apply(list []storage.Prospect, f Filter) []storage.Prospect {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]storage.Prospect, 0, len(list))
	for _, p := range list {
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		if active(f.Status) && p.Status != f.Status {
			continue
		}
		if active(f.Priority) && p.Priority != f.Priority {
			continue
		}
		out = append(out, p)
	}
	return out
}

func active(v string) bool { return v != "" && v != "all" }

func matchesSearch(p storage.Prospect, q string) bool {
	if strings.Contains(strings.ToLower(p.CompanyName), q) ||
		strings.Contains(strings.ToLower(p.ContactName), q) {
		return true
	}
	return p.Email != nil && strings.Contains(strings.ToLower(*p.Email), q)
}

// SortList returns a stably sorted copy. Equal keys keep their input
// relative order in both directions.
func SortList(list []storage.Prospect, s Sort) []storage.Prospect {
	s = s.normalized()
	out := make([]storage.Prospect, len(list))
	copy(out, list)

	cmp := comparator(s.Field)
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if s.Dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func comparator(f SortField) func(a, b storage.Prospect) int {
	switch f {
	case SortContact:
		return func(a, b storage.Prospect) int {
			return strings.Compare(strings.ToLower(a.ContactName), strings.ToLower(b.ContactName))
		}
	case SortStatus:
		return func(a, b storage.Prospect) int {
			return strings.Compare(strings.ToLower(a.Status), strings.ToLower(b.Status))
		}
	case SortPriority:
		return func(a, b storage.Prospect) int {
			return PriorityRank(a.Priority) - PriorityRank(b.Priority)
		}
	case SortLastExchange:
		// Prospects never contacted sort before any dated one.
		return func(a, b storage.Prospect) int {
			switch {
			case a.LastExchange == nil && b.LastExchange == nil:
				return 0
			case a.LastExchange == nil:
				return -1
			case b.LastExchange == nil:
				return 1
			}
			return a.LastExchange.Compare(*b.LastExchange)
		}
	default:
		return func(a, b storage.Prospect) int {
			return strings.Compare(strings.ToLower(a.CompanyName), strings.ToLower(b.CompanyName))
		}
	}
}

// Paginate cuts page (1-based) out of list. Pages past the end are empty.
func Paginate(list []storage.Prospect, page int) Page {
	if page < 1 {
		page = 1
	}
	total := len(list)
	pages := (total + PageSize - 1) / PageSize

	start := (page - 1) * PageSize
	if start > total {
		start = total
	}
	end := start + PageSize
	if end > total {
		end = total
	}
	return Page{
		Items:      list[start:end],
		Page:       page,
		TotalPages: pages,
		Total:      total,
	}
}
