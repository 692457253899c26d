// Package store is the persistence layer of the monitor: versioned entities,
// persisted secondary indexes and the notification ledger, all accessed
// through explicit transaction boundaries.
package store

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wb-sppmon/internal/index"
	"wb-sppmon/internal/models"
)

// Index names persisted in the index_entries table. Subcategory name indexes
// are per owning category.
const (
	IdxCategoryName = "category-name"
)

// SubcategoryNameIndex returns the name of the per-category subcategory name
// index.
func SubcategoryNameIndex(categoryID int64) string {
	return "subcategory-name-" + strconv.FormatInt(categoryID, 10)
}

// Store wraps the gorm handle for the monitor's tables. All mutating calls
// take the transaction handle the current pass runs under.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log}
}

// DB exposes the underlying handle for read-only callers (the status API).
func (s *Store) DB() *gorm.DB { return s.db }

// Products loads every known product keyed by article.
func (s *Store) Products(tx *gorm.DB) (map[string]*models.Product, error) {
	var rows []*models.Product
	if err := tx.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	out := make(map[string]*models.Product, len(rows))
	for _, p := range rows {
		out[p.Article] = p
	}
	return out, nil
}

// Categories loads every known category keyed by identifier.
func (s *Store) Categories(tx *gorm.DB) (map[int64]*models.Category, error) {
	var rows []*models.Category
	if err := tx.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load categories")
	}
	out := make(map[int64]*models.Category, len(rows))
	for _, c := range rows {
		out[c.ID] = c
	}
	return out, nil
}

// Subcategories loads the known subcategories of one category, keyed by
// identifier.
func (s *Store) Subcategories(tx *gorm.DB, categoryID int64) (map[int64]*models.Subcategory, error) {
	var rows []*models.Subcategory
	if err := tx.Where("category_id = ?", categoryID).Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "load subcategories of category %d", categoryID)
	}
	out := make(map[int64]*models.Subcategory, len(rows))
	for _, sc := range rows {
		out[sc.ID] = sc
	}
	return out, nil
}

// Save persists one entity (insert or full update) inside tx.
func (s *Store) Save(tx *gorm.DB, entity any) error {
	return errors.Wrap(tx.Save(entity).Error, "save entity")
}

// SlotFor returns the price slot with the exact half-open bounds
// [priceFrom, priceTo) for the subcategory, creating it on first use. Slots
// persist indefinitely once created.
func (s *Store) SlotFor(tx *gorm.DB, subcategoryID int64, priceFrom, priceTo float64) (*models.PriceSlot, error) {
	var slot models.PriceSlot
	err := tx.Where("subcategory_id = ? AND price_from = ? AND price_to = ?",
		subcategoryID, priceFrom, priceTo).First(&slot).Error
	if err == nil {
		return &slot, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "look up price slot")
	}

	slot = models.PriceSlot{SubcategoryID: subcategoryID, PriceFrom: priceFrom, PriceTo: priceTo}
	if err := tx.Create(&slot).Error; err != nil {
		return nil, errors.Wrap(err, "create price slot")
	}
	s.log.Debugw("created price slot", "subcategory", subcategoryID, "from", priceFrom, "to", priceTo)
	return &slot, nil
}

// Slots loads every persisted slot of a subcategory ordered by lower bound.
func (s *Store) Slots(tx *gorm.DB, subcategoryID int64) ([]*models.PriceSlot, error) {
	var rows []*models.PriceSlot
	if err := tx.Where("subcategory_id = ?", subcategoryID).Order("price_from").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load price slots")
	}
	return rows, nil
}

// LoadIndex materializes a named persisted index into memory.
func (s *Store) LoadIndex(tx *gorm.DB, name string) (*index.Multi[int64], error) {
	var rows []models.IndexEntry
	if err := tx.Where("index_name = ?", name).Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "load index %s", name)
	}
	idx := index.NewMulti[int64]()
	for _, row := range rows {
		idx.Upsert(row.Key, row.Value)
	}
	return idx, nil
}

// AppendIndex records one index cell both in memory and in the persisted
// index. Existing rows are left alone; index entries are never deleted.
func (s *Store) AppendIndex(tx *gorm.DB, idx *index.Multi[int64], name, key string, value int64) error {
	idx.Upsert(key, value)
	row := models.IndexEntry{IndexName: name, Key: key, Value: value}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	return errors.Wrapf(err, "append to index %s", name)
}

// AppState returns the single bookkeeping row, creating it on first use.
func (s *Store) AppState(tx *gorm.DB) (*models.AppState, error) {
	var st models.AppState
	err := tx.First(&st).Error
	if err == nil {
		return &st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "load app state")
	}
	st = models.AppState{ID: 1}
	if err := tx.Create(&st).Error; err != nil {
		return nil, errors.Wrap(err, "create app state")
	}
	return &st, nil
}

// SaveSummary persists one pass summary row.
func (s *Store) SaveSummary(tx *gorm.DB, sum *models.RunSummary) error {
	sum.CreatedAt = time.Now().UTC()
	return errors.Wrap(tx.Create(sum).Error, "save run summary")
}
