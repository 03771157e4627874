package pagination

import (
	"strconv"
	"strings"
)

// DefaultPageSize is the number of links shown per page
const DefaultPageSize = 10

// fullWindowLimit is the largest page count shown without ellipses
const fullWindowLimit = 7

// Item is one entry of a page window: either a page number or an ellipsis
type Item struct {
	Page     int
	Ellipsis bool
	Active   bool
}

// TotalPages returns ceil(total/size); zero when there is nothing to show
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// DisplayTotal is TotalPages but never less than 1, which is what the
// page control shows for an empty list
func DisplayTotal(total, size int) int {
	return max(1, TotalPages(total, size))
}

// Clamp limits page to [1, max(1, totalPages)]
func Clamp(page, totalPages int) int {
	return min(max(page, 1), max(totalPages, 1))
}

// Prev returns the page before current, clamped
func Prev(current, totalPages int) int {
	return Clamp(current-1, totalPages)
}

// Next returns the page after current, clamped
func Next(current, totalPages int) int {
	return Clamp(current+1, totalPages)
}

// Window returns the page numbers to show for current out of totalPages.
// The first and last pages are always present. Up to seven pages are all
// listed; beyond that only the neighbours of current are listed, with an
// ellipsis standing in for each omitted run. An out-of-range current
// lays the window out around the nearest page but marks nothing active.
func Window(current, totalPages int) []Item {
	if totalPages < 1 {
		return nil
	}
	active := current
	current = Clamp(current, totalPages)

	page := func(p int) Item {
		return Item{Page: p, Active: p == active}
	}

	if totalPages <= fullWindowLimit {
		items := make([]Item, 0, totalPages)
		for p := 1; p <= totalPages; p++ {
			items = append(items, page(p))
		}
		return items
	}

	items := []Item{page(1)}
	if current > 3 {
		items = append(items, Item{Ellipsis: true})
	}
	for p := max(2, current-1); p <= min(totalPages-1, current+1); p++ {
		items = append(items, page(p))
	}
	if current < totalPages-2 {
		items = append(items, Item{Ellipsis: true})
	}
	return append(items, page(totalPages))
}

// Render formats a window for a terminal, e.g. "1 … 4 [5] 6 … 10"
func Render(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch {
		case item.Ellipsis:
			parts = append(parts, "…")
		case item.Active:
			parts = append(parts, "["+strconv.Itoa(item.Page)+"]")
		default:
			parts = append(parts, strconv.Itoa(item.Page))
		}
	}
	return strings.Join(parts, " ")
}
