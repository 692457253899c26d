package models

import (
	"fmt"
	"time"
)

// Product is a monitored Wildberries product. Products are created on first
// observation and never deleted.
type Product struct {
	Article        string  `json:"article" gorm:"primaryKey;size:32"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	PriceSale      float64 `json:"price_sale"`
	DiscountBase   int     `json:"discount_base"`
	DiscountClient int     `json:"discount_client"` // SPP, the value change detection cares about
	Fetched
}

// ProductValues is the typed partial update for Product.
type ProductValues struct {
	Name           string
	Price          float64
	PriceSale      float64
	DiscountBase   int
	DiscountClient int
}

// Update compares the freshly fetched values against the stored ones. If any
// field differs, all fields are applied, the previous values of the changed
// fields (plus the previous fetched_at) are captured into the diff snapshot,
// and fetched_at advances. Otherwise the entity is left untouched apart from
// an empty snapshot marking it as checked.
func (p *Product) Update(fetchedAt time.Time, v ProductValues) bool {
	diff := map[string]any{}
	diffVal(diff, "name", p.Name, v.Name)
	diffVal(diff, "price", p.Price, v.Price)
	diffVal(diff, "price_sale", p.PriceSale, v.PriceSale)
	diffVal(diff, "discount_base", p.DiscountBase, v.DiscountBase)
	diffVal(diff, "discount_client", p.DiscountClient, v.DiscountClient)
	if len(diff) > 0 {
		p.Name = v.Name
		p.Price = v.Price
		p.PriceSale = v.PriceSale
		p.DiscountBase = v.DiscountBase
		p.DiscountClient = v.DiscountClient
	}
	return p.applyDiff(fetchedAt, diff)
}

func (p *Product) String() string {
	return fmt.Sprintf("%s: %s, %.2f, sale: %.2f, spp: %d", p.Article, p.Name, p.Price, p.PriceSale, p.DiscountClient)
}

// Category is a node of the Wildberries category tree. Shard and Query are
// the routing fields required to query the category's subcategories; both are
// absent for purely structural nodes.
type Category struct {
	ID         int64   `json:"id" gorm:"primaryKey"`
	Name       string  `json:"name" gorm:"index"`
	SearchName *string `json:"search_name"`
	URL        string  `json:"url"`
	ParentID   *int64  `json:"parent_id" gorm:"index"`
	Shard      *string `json:"shard"`
	Query      *string `json:"query"`
	ChildCount int     `json:"child_count"`

	// SubcategoriesLastUpdate is the start of the last subcategory
	// reconciliation pass that touched this category.
	SubcategoriesLastUpdate *time.Time `json:"subcategories_last_update"`
	Fetched
}

// CategoryValues is the typed partial update for Category.
type CategoryValues struct {
	Name       string
	SearchName *string
	URL        string
	ParentID   *int64
	Shard      *string
	Query      *string
	ChildCount int
}

func (c *Category) Update(fetchedAt time.Time, v CategoryValues) bool {
	diff := map[string]any{}
	diffVal(diff, "name", c.Name, v.Name)
	diffPtr(diff, "search_name", c.SearchName, v.SearchName)
	diffVal(diff, "url", c.URL, v.URL)
	diffPtr(diff, "parent_id", c.ParentID, v.ParentID)
	diffPtr(diff, "shard", c.Shard, v.Shard)
	diffPtr(diff, "query", c.Query, v.Query)
	diffVal(diff, "child_count", c.ChildCount, v.ChildCount)
	if len(diff) > 0 {
		c.Name = v.Name
		c.SearchName = v.SearchName
		c.URL = v.URL
		c.ParentID = v.ParentID
		c.Shard = v.Shard
		c.Query = v.Query
		c.ChildCount = v.ChildCount
	}
	return c.applyDiff(fetchedAt, diff)
}

// HasRouting reports whether the category carries the routing fields needed
// to query its subcategories and catalog pages.
func (c *Category) HasRouting() bool {
	return c.Shard != nil && *c.Shard != "" && c.Query != nil && *c.Query != ""
}

func (c *Category) String() string {
	return fmt.Sprintf("category %d: %s", c.ID, c.Name)
}

// Subcategory belongs to exactly one Category. The ownership is recorded as a
// weak back-reference by identifier; the owning category keeps its
// subcategories in a name index, so there is no pointer cycle.
type Subcategory struct {
	ID         int64  `json:"id" gorm:"primaryKey"`
	Name       string `json:"name" gorm:"index"`
	CategoryID int64  `json:"category_id" gorm:"index"`
	Fetched
}

// SubcategoryValues is the typed partial update for Subcategory.
type SubcategoryValues struct {
	Name       string
	CategoryID int64
}

func (s *Subcategory) Update(fetchedAt time.Time, v SubcategoryValues) bool {
	diff := map[string]any{}
	diffVal(diff, "name", s.Name, v.Name)
	diffVal(diff, "category_id", s.CategoryID, v.CategoryID)
	if len(diff) > 0 {
		s.Name = v.Name
		s.CategoryID = v.CategoryID
	}
	return s.applyDiff(fetchedAt, diff)
}

func (s *Subcategory) String() string {
	return fmt.Sprintf("subcategory %d: %s", s.ID, s.Name)
}

// PriceSlot is a half-open price range [PriceFrom, PriceTo) within a
// monitored subcategory. The persisted part is the consensus discount; the
// candidate article set is rebuilt by discovery on every run.
type PriceSlot struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	SubcategoryID int64   `json:"subcategory_id" gorm:"uniqueIndex:idx_slot_bounds"`
	PriceFrom     float64 `json:"price_from" gorm:"uniqueIndex:idx_slot_bounds"`
	PriceTo       float64 `json:"price_to" gorm:"uniqueIndex:idx_slot_bounds"`
	Discount      *int    `json:"discount"` // nil until the first successful determination

	// articles is this run's candidate set, keyed by product article.
	articles map[string]struct{} `gorm:"-"`
	Fetched
}

// Contains reports whether the given sale price falls into the slot
// (lower-inclusive, upper-exclusive).
func (s *PriceSlot) Contains(price float64) bool {
	return price >= s.PriceFrom && price < s.PriceTo
}

// AddCandidate records an article observed inside the slot's price range.
// Returns false if the article was already a member.
func (s *PriceSlot) AddCandidate(article string) bool {
	if s.articles == nil {
		s.articles = make(map[string]struct{})
	}
	if _, ok := s.articles[article]; ok {
		return false
	}
	s.articles[article] = struct{}{}
	return true
}

// Candidates returns the transient candidate article set of the current run.
func (s *PriceSlot) Candidates() []string {
	out := make([]string, 0, len(s.articles))
	for a := range s.articles {
		out = append(out, a)
	}
	return out
}

// UpdateDiscount applies a newly determined consensus discount through the
// versioned update primitive.
func (s *PriceSlot) UpdateDiscount(fetchedAt time.Time, discount int) bool {
	diff := map[string]any{}
	diffPtr(diff, "discount", s.Discount, &discount)
	if len(diff) > 0 {
		d := discount
		s.Discount = &d
	}
	return s.applyDiff(fetchedAt, diff)
}

func (s *PriceSlot) String() string {
	return fmt.Sprintf("slot [%g, %g) of subcategory %d", s.PriceFrom, s.PriceTo, s.SubcategoryID)
}

// IndexEntry is one persisted cell of a named multi-valued index. Entries
// grow monotonically; stale keys are never removed when referents disappear.
type IndexEntry struct {
	ID        uint   `gorm:"primaryKey"`
	IndexName string `gorm:"size:64;uniqueIndex:idx_index_cell"`
	Key       string `gorm:"size:255;uniqueIndex:idx_index_cell"`
	Value     int64  `gorm:"uniqueIndex:idx_index_cell"`
}

// LedgerEntry records when a report about an entity was last delivered, per
// purpose ("changes" or "errors"). Used to rate-limit duplicate reports.
type LedgerEntry struct {
	Purpose    string    `gorm:"primaryKey;size:16"`
	Descriptor string    `gorm:"primaryKey;size:191"`
	ReportedAt time.Time `gorm:"index"`
}

// AppState is the single-row table carrying run-level bookkeeping.
type AppState struct {
	ID                   uint `gorm:"primaryKey"`
	CategoriesLastUpdate *time.Time
}

// RunSummary is the persisted outcome of one reconciliation pass: entity
// counters for one batch. Disappeared is derived arithmetically, entities are
// never deleted.
type RunSummary struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	RunID       string    `json:"run_id" gorm:"size:36;index"`
	Pass        string    `json:"pass" gorm:"size:32"`
	StartedAt   time.Time `json:"started_at" gorm:"index"`
	New         int       `json:"new"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Disappeared int       `json:"disappeared"`
	Failures    int       `json:"failures"`
	CreatedAt   time.Time `json:"created_at"`
}
