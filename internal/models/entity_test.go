package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductUpdateIdempotent(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Product{Article: "12345", Name: "boots", Price: 100, PriceSale: 80, DiscountBase: 10, DiscountClient: 20, Fetched: Fetched{FetchedAt: t0}}

	vals := ProductValues{Name: "boots", Price: 100, PriceSale: 80, DiscountBase: 10, DiscountClient: 20}

	changed := p.Update(t0.Add(time.Hour), vals)
	assert.False(t, changed)
	assert.Equal(t, t0, p.FetchedAt, "fetched_at must not advance without a change")
	require.NotNil(t, p.OldValues(), "checked entity must carry an empty snapshot")
	assert.Empty(t, p.OldValues())

	changed = p.Update(t0.Add(2*time.Hour), vals)
	assert.False(t, changed)
	assert.Equal(t, t0, p.FetchedAt)
}

func TestProductUpdateDiff(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	p := &Product{Article: "12345", Name: "boots", Price: 100, PriceSale: 80, DiscountBase: 10, DiscountClient: 20, Fetched: Fetched{FetchedAt: t0}}

	changed := p.Update(t1, ProductValues{Name: "boots", Price: 100, PriceSale: 75, DiscountBase: 10, DiscountClient: 25})
	require.True(t, changed)

	// exactly the changed fields plus fetched_at, with the prior values
	diff := p.OldValues()
	require.Len(t, diff, 3)
	assert.Equal(t, 80.0, diff["price_sale"])
	assert.Equal(t, 20, diff["discount_client"])
	assert.Equal(t, t0, diff["fetched_at"])

	assert.Equal(t, t1, p.FetchedAt)
	assert.Equal(t, 75.0, p.PriceSale)
	assert.Equal(t, 25, p.DiscountClient)
}

func TestNewEntityHasNoSnapshot(t *testing.T) {
	p := &Product{Article: "1"}
	assert.Nil(t, p.OldValues())
	assert.False(t, p.Checked())
}

func TestCategoryUpdateNullableFields(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	shard := "shoes"
	query := "cat=8225"
	c := &Category{ID: 8225, Name: "Shoes", URL: "/catalog/shoes", Fetched: Fetched{FetchedAt: t0}}

	changed := c.Update(t0.Add(time.Minute), CategoryValues{Name: "Shoes", URL: "/catalog/shoes", Shard: &shard, Query: &query})
	require.True(t, changed)
	diff := c.OldValues()
	assert.Contains(t, diff, "shard")
	assert.Contains(t, diff, "query")
	assert.Nil(t, diff["shard"], "previous shard was absent")
	require.NotNil(t, c.Shard)
	assert.Equal(t, "shoes", *c.Shard)

	// same pointer values fetched again are not a change
	shard2 := "shoes"
	query2 := "cat=8225"
	changed = c.Update(t0.Add(2*time.Minute), CategoryValues{Name: "Shoes", URL: "/catalog/shoes", Shard: &shard2, Query: &query2})
	assert.False(t, changed)
	assert.Empty(t, c.OldValues())
}

func TestPriceSlotContains(t *testing.T) {
	lo := &PriceSlot{PriceFrom: 0, PriceTo: 100}
	hi := &PriceSlot{PriceFrom: 100, PriceTo: 200}

	assert.True(t, lo.Contains(99.99))
	assert.False(t, lo.Contains(100))
	assert.True(t, hi.Contains(100), "bounds are lower-inclusive, upper-exclusive")
	assert.False(t, hi.Contains(200))
}

func TestPriceSlotCandidates(t *testing.T) {
	s := &PriceSlot{}
	assert.True(t, s.AddCandidate("1"))
	assert.False(t, s.AddCandidate("1"), "duplicate articles are ignored")
	assert.True(t, s.AddCandidate("2"))
	assert.ElementsMatch(t, []string{"1", "2"}, s.Candidates())
}

func TestPriceSlotUpdateDiscount(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &PriceSlot{SubcategoryID: 1, PriceFrom: 0, PriceTo: 100}

	changed := s.UpdateDiscount(t0, 25)
	require.True(t, changed)
	require.NotNil(t, s.Discount)
	assert.Equal(t, 25, *s.Discount)
	assert.Nil(t, s.OldValues()["discount"], "first determination had no previous value")

	changed = s.UpdateDiscount(t0.Add(time.Hour), 25)
	assert.False(t, changed)

	changed = s.UpdateDiscount(t0.Add(2*time.Hour), 27)
	require.True(t, changed)
	prev := s.OldValues()["discount"].(*int)
	assert.Equal(t, 25, *prev)
}
