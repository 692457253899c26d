package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyExactMatch(t *testing.T) {
	m := NewMulti[int64]()
	m.Upsert("boots", 10)

	assert.Equal(t, []int64{10}, Fuzzy(m, "boots", 3, 0))
	assert.Equal(t, []int64{10}, Fuzzy(m, "BOOTS", 3, 0), "search is lower-cased")
}

func TestFuzzyMonotonicFallback(t *testing.T) {
	m := NewMulti[int64]()
	m.Upsert("boots", 10)

	// "bootsxyz" has no match at lengths 8..6; stripping down to "boots" hits
	assert.Equal(t, []int64{10}, Fuzzy(m, "bootsxyz", 5, 0))
}

func TestFuzzySuffixTolerance(t *testing.T) {
	m := NewMulti[int64]()
	m.Upsert("bootsies", 10)

	// key is 3 runes longer than the search string
	assert.Nil(t, Fuzzy(m, "boots", 5, 2))
	assert.Equal(t, []int64{10}, Fuzzy(m, "boots", 5, 3))
}

func TestFuzzyFirstMatchingLengthWins(t *testing.T) {
	m := NewMulti[int64]()
	m.Upsert("boot", 1)
	m.Upsert("boots", 2)

	// the full search length already matches; the shorter "boot" level is
	// never probed
	got := Fuzzy(m, "boots", 3, 0)
	assert.Equal(t, []int64{2}, got)
}

func TestFuzzyMinCharsStopsSearch(t *testing.T) {
	m := NewMulti[int64]()
	m.Upsert("bo", 1)

	assert.Nil(t, Fuzzy(m, "boxy", 3, 0), "search never shrinks below minChars")
	assert.Equal(t, []int64{1}, Fuzzy(m, "boxy", 2, 0))
}

func TestFuzzyUnionExpandsSets(t *testing.T) {
	m := NewMulti[int64]()
	m.Upsert("shoes", 1)
	m.Upsert("shoes", 2)
	m.Upsert("shoes kids", 3)

	got := Fuzzy(m, "shoes", 3, 5)
	assert.ElementsMatch(t, []int64{1, 2, 3}, got)
}

func TestFuzzyNoMatch(t *testing.T) {
	m := NewMulti[int64]()
	m.Upsert("boots", 1)
	assert.Nil(t, Fuzzy(m, "zzz", 2, 3))
}

func TestNumeric(t *testing.T) {
	assert.True(t, Numeric("123456"))
	assert.False(t, Numeric("12a"))
	assert.False(t, Numeric(""))
	assert.False(t, Numeric("boots"))
}
