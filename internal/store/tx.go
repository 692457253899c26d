package store

import (
	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

// Outcome is the explicit transaction result of a reconciliation pass.
// Rollback is a normal control outcome (the notification gate declining to
// commit), not an error.
type Outcome int

const (
	Commit Outcome = iota
	Rollback
)

func (o Outcome) String() string {
	if o == Commit {
		return "commit"
	}
	return "rollback"
}

// InTx brackets fn in one transaction. The transaction commits only when fn
// returns (Commit, nil); a Rollback outcome or an error rolls everything
// back. The error, if any, is propagated unchanged.
func (s *Store) InTx(fn func(tx *gorm.DB) (Outcome, error)) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "begin transaction")
	}

	outcome, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	if outcome == Rollback {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return errors.Wrap(rbErr, "rollback transaction")
		}
		return nil
	}
	return errors.Wrap(tx.Commit().Error, "commit transaction")
}
