package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wb-sppmon/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.Category{}, &models.Subcategory{},
		&models.PriceSlot{}, &models.IndexEntry{}, &models.LedgerEntry{},
		&models.AppState{}, &models.RunSummary{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return New(db, zap.NewNop().Sugar())
}

func TestSlotForIdempotent(t *testing.T) {
	s := testStore(t)

	var first, second *models.PriceSlot
	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		var err error
		first, err = s.SlotFor(tx, 77, 0, 100)
		require.NoError(t, err)
		second, err = s.SlotFor(tx, 77, 0, 100)
		require.NoError(t, err)
		return Commit, nil
	}))

	assert.Equal(t, first.ID, second.ID, "get-or-create is keyed by exact bounds")

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		other, err := s.SlotFor(tx, 77, 100, 200)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, other.ID)
		return Commit, nil
	}))
}

func TestIndexPersistenceRoundTrip(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		idx, err := s.LoadIndex(tx, IdxCategoryName)
		require.NoError(t, err)
		require.NoError(t, s.AppendIndex(tx, idx, IdxCategoryName, "shoes", 1))
		require.NoError(t, s.AppendIndex(tx, idx, IdxCategoryName, "shoes", 2))
		// duplicate row must not error
		require.NoError(t, s.AppendIndex(tx, idx, IdxCategoryName, "shoes", 1))
		return Commit, nil
	}))

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		idx, err := s.LoadIndex(tx, IdxCategoryName)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2}, idx.Get("shoes"))
		return Commit, nil
	}))
}

func TestInTxRollbackDiscardsWrites(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		require.NoError(t, s.Save(tx, &models.Product{Article: "1", Name: "kept"}))
		return Commit, nil
	}))
	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		p := &models.Product{Article: "1"}
		require.NoError(t, tx.First(p).Error)
		p.Name = "discarded"
		require.NoError(t, s.Save(tx, p))
		return Rollback, nil
	}))

	var p models.Product
	require.NoError(t, s.DB().First(&p, "article = ?", "1").Error)
	assert.Equal(t, "kept", p.Name)
}

func TestLedger(t *testing.T) {
	s := testStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		within, err := s.ReportedWithin(tx, PurposeChanges, "product 1", time.Hour, now)
		require.NoError(t, err)
		assert.False(t, within, "never reported")

		require.NoError(t, s.MarkReported(tx, PurposeChanges, []string{"product 1"}, now))
		return Commit, nil
	}))

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		within, err := s.ReportedWithin(tx, PurposeChanges, "product 1", time.Hour, now.Add(30*time.Minute))
		require.NoError(t, err)
		assert.True(t, within)

		within, err = s.ReportedWithin(tx, PurposeChanges, "product 1", time.Hour, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, within, "delay interval elapsed")

		// purposes are independent ledgers
		within, err = s.ReportedWithin(tx, PurposeErrors, "product 1", time.Hour, now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, within)
		return Commit, nil
	}))
}

func TestAppStateSingleton(t *testing.T) {
	s := testStore(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		st, err := s.AppState(tx)
		require.NoError(t, err)
		assert.Nil(t, st.CategoriesLastUpdate)
		st.CategoriesLastUpdate = &at
		return Commit, s.Save(tx, st)
	}))

	require.NoError(t, s.InTx(func(tx *gorm.DB) (Outcome, error) {
		st, err := s.AppState(tx)
		require.NoError(t, err)
		require.NotNil(t, st.CategoriesLastUpdate)
		assert.True(t, at.Equal(*st.CategoriesLastUpdate))
		return Commit, nil
	}))
}
