package pagination

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// pages flattens a window to page numbers with 0 for an ellipsis
func pages(items []Item) []int {
	out := make([]int, 0, len(items))
	for _, item := range items {
		if item.Ellipsis {
			out = append(out, 0)
			continue
		}
		out = append(out, item.Page)
	}
	return out
}

func TestTotalPages(t *testing.T) {
	testCases := []struct {
		total, size, want, display int
	}{
		{0, 10, 0, 1},
		{1, 10, 1, 1},
		{10, 10, 1, 1},
		{11, 10, 2, 2},
		{25, 10, 3, 3},
		{100, 10, 10, 10},
		{5, 0, 0, 1},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d/%d", tc.total, tc.size), func(t *testing.T) {
			assert.Equal(t, tc.want, TotalPages(tc.total, tc.size))
			assert.Equal(t, tc.display, DisplayTotal(tc.total, tc.size))
		})
	}
}

func TestClampPrevNext(t *testing.T) {
	assert.Equal(t, 1, Clamp(0, 5))
	assert.Equal(t, 1, Clamp(-3, 5))
	assert.Equal(t, 5, Clamp(9, 5))
	assert.Equal(t, 3, Clamp(3, 5))
	assert.Equal(t, 1, Clamp(4, 0))

	assert.Equal(t, 1, Prev(1, 5))
	assert.Equal(t, 2, Prev(3, 5))
	assert.Equal(t, 5, Next(5, 5))
	assert.Equal(t, 4, Next(3, 5))
	assert.Equal(t, 1, Next(1, 0))
}

func TestWindow_SmallTotalsShowEveryPage(t *testing.T) {
	for total := 1; total <= 7; total++ {
		for current := 1; current <= total; current++ {
			items := Window(current, total)

			want := make([]int, total)
			for i := range want {
				want[i] = i + 1
			}
			assert.Equal(t, want, pages(items), "total=%d current=%d", total, current)

			for _, item := range items {
				assert.False(t, item.Ellipsis)
				assert.Equal(t, item.Page == current, item.Active)
			}
		}
	}
}

func TestWindow_LargeTotals(t *testing.T) {
	testCases := []struct {
		current int
		want    []int
	}{
		{1, []int{1, 2, 0, 10}},
		{2, []int{1, 2, 3, 0, 10}},
		{3, []int{1, 2, 3, 4, 0, 10}},
		{4, []int{1, 0, 3, 4, 5, 0, 10}},
		{5, []int{1, 0, 4, 5, 6, 0, 10}},
		{7, []int{1, 0, 6, 7, 8, 0, 10}},
		{8, []int{1, 0, 7, 8, 9, 10}},
		{9, []int{1, 0, 8, 9, 10}},
		{10, []int{1, 0, 9, 10}},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("current=%d", tc.current), func(t *testing.T) {
			assert.Equal(t, tc.want, pages(Window(tc.current, 10)))
		})
	}
}

func TestWindow_NoDuplicatesAndActiveMarked(t *testing.T) {
	for total := 1; total <= 30; total++ {
		for current := 1; current <= total; current++ {
			seen := map[int]bool{}
			active := 0
			for _, item := range Window(current, total) {
				if item.Ellipsis {
					continue
				}
				assert.False(t, seen[item.Page], "total=%d current=%d page=%d", total, current, item.Page)
				seen[item.Page] = true
				if item.Active {
					active++
					assert.Equal(t, current, item.Page)
				}
			}
			assert.True(t, seen[1])
			assert.True(t, seen[total])
			assert.Equal(t, 1, active)
		}
	}
}

func TestWindow_OutOfRangeInput(t *testing.T) {
	assert.Nil(t, Window(1, 0))
	assert.Equal(t, []int{1, 0, 9, 10}, pages(Window(42, 10)))
	assert.Equal(t, []int{1, 2, 0, 10}, pages(Window(-1, 10)))

	for _, item := range Window(42, 10) {
		assert.False(t, item.Active)
	}
	assert.Equal(t, "1", Render(Window(2, 1)))
}

func TestRender(t *testing.T) {
	assert.Equal(t, "1 … 4 [5] 6 … 10", Render(Window(5, 10)))
	assert.Equal(t, "[1] 2 3", Render(Window(1, 3)))
	assert.Equal(t, "", Render(nil))
}
