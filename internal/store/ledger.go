package store

import (
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wb-sppmon/internal/models"
)

// Notification ledger purposes. Change reports and error reports are
// rate-limited independently, each with its own delay interval.
const (
	PurposeChanges = "changes"
	PurposeErrors  = "errors"
)

// ReportedWithin reports whether a notification about descriptor was already
// delivered within the given interval before now.
func (s *Store) ReportedWithin(tx *gorm.DB, purpose, descriptor string, interval time.Duration, now time.Time) (bool, error) {
	var row models.LedgerEntry
	err := tx.Where("purpose = ? AND descriptor = ?", purpose, descriptor).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "read notification ledger")
	}
	return now.Sub(row.ReportedAt) < interval, nil
}

// MarkReported stamps every descriptor with the delivery time. Entries are
// upserted: a repeated report refreshes the timestamp.
func (s *Store) MarkReported(tx *gorm.DB, purpose string, descriptors []string, at time.Time) error {
	for _, d := range descriptors {
		row := models.LedgerEntry{Purpose: purpose, Descriptor: d, ReportedAt: at}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purpose"}, {Name: "descriptor"}},
			DoUpdates: clause.AssignmentColumns([]string{"reported_at"}),
		}).Create(&row).Error
		if err != nil {
			return errors.Wrapf(err, "mark %s reported", d)
		}
	}
	return nil
}
