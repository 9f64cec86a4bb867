package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStopsWhenYieldRefuses(t *testing.T) {
	var seen []int
	From([]int{1, 2, 3, 4}).Seq()(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestChain(t *testing.T) {
	got := Distinct(From([]string{"b.mesh", "a.mesh", "b.mesh", "c.tex"})).
		Filter(func(s string) bool { return s != "c.tex" }).
		Sort(func(a, b string) bool { return a < b }).
		Collect()
	assert.Equal(t, []string{"a.mesh", "b.mesh"}, got)
}

func TestGroupBy(t *testing.T) {
	groups := GroupBy(From([]int{1, 2, 3, 4, 5}), func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{2, 4}, groups[true])
	assert.Equal(t, []int{1, 3, 5}, groups[false])
	assert.Equal(t, 3, FromMap(map[string]int{"a": 1, "b": 2, "c": 3}).Count())
}
