// Package monitor implements the reconciliation engine: the scheduled passes
// that refresh tracked products, the category tree and monitored price slots,
// detect attribute changes, and gate notification delivery behind the
// transactional commit/rollback rule.
package monitor

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"wb-sppmon/internal/config"
	"wb-sppmon/internal/models"
	"wb-sppmon/internal/notify"
	"wb-sppmon/internal/report"
	"wb-sppmon/internal/store"
	"wb-sppmon/internal/wildberries"
)

// Source is the remote catalog consumed by the passes. Implemented by
// *wildberries.Client; faked in tests.
type Source interface {
	ProductDetails(article string) (time.Time, wildberries.ProductDetails, error)
	Categories() (time.Time, []wildberries.CategoryNode, error)
	Subcategories(shard, query string) (time.Time, []wildberries.SubcategoryInfo, error)
	CatalogPage(shard, query string, subcategoryID int64, priceCeiling float64, page int) ([]wildberries.CatalogItem, error)
}

// Monitor runs one batch reconciliation at a time. It is single-threaded;
// operators are responsible for scheduling non-overlapping runs.
type Monitor struct {
	cfg     *config.Config
	targets *config.Targets
	st      *store.Store
	src     Source
	channel notify.Channel
	log     *zap.SugaredLogger

	// now is stubbed in tests.
	now func() time.Time

	// Per-run state, reset by Run.
	runID     string
	failures  []report.Failure
	summaries []models.RunSummary
	reported  []report.Entry
}

func New(cfg *config.Config, targets *config.Targets, st *store.Store, src Source, channel notify.Channel, log *zap.SugaredLogger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		targets: targets,
		st:      st,
		src:     src,
		channel: channel,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// collect records a failure for the end-of-run admin report.
func (m *Monitor) collect(f report.Failure) {
	m.log.Warnw("failure collected", "entity", f.Descr, "message", f.Message)
	m.failures = append(m.failures, f)
}

// gatedPass brackets one reconciliation pass in a transaction and applies the
// notification gate: the pass's reportable changes are filtered through the
// change ledger; if anything remains, the report must reach at least one
// recipient for the transaction to commit. Total delivery failure rolls the
// whole pass back so the same change is re-detected on the next run.
func (m *Monitor) gatedPass(pass string, fn func(tx *gorm.DB) ([]report.Entry, error)) error {
	staged := len(m.summaries)
	return m.st.InTx(func(tx *gorm.DB) (store.Outcome, error) {
		outcome, err := m.gated(tx, pass, fn)
		if outcome == store.Rollback {
			// the pass never happened; its summary must not outlive it
			m.summaries = m.summaries[:staged]
		}
		return outcome, err
	})
}

func (m *Monitor) gated(tx *gorm.DB, pass string, fn func(tx *gorm.DB) ([]report.Entry, error)) (store.Outcome, error) {
	entries, err := fn(tx)
	if err != nil {
		return store.Rollback, err
	}

	now := m.now()
	var due []report.Entry
	for _, e := range entries {
		within, err := m.st.ReportedWithin(tx, store.PurposeChanges, e.Descr, m.cfg.ReportChangesDelay, now)
		if err != nil {
			return store.Rollback, err
		}
		if within {
			// recently reported; the persisted change still stands
			m.log.Debugw("change report suppressed by ledger", "entity", e.Descr)
			continue
		}
		due = append(due, e)
	}
	if len(due) == 0 {
		return store.Commit, nil
	}

	if len(m.targets.ReportRecipients) == 0 {
		// nowhere to deliver; persist the change and move on
		m.log.Warnw("no report recipients configured, skipping delivery", "pass", pass)
		return store.Commit, nil
	}

	text := report.ComposeChanges(due)
	if m.deliver(m.targets.ReportRecipients, text) == 0 {
		m.log.Warnw("report undeliverable, rolling back pass", "pass", pass, "entries", len(due))
		return store.Rollback, nil
	}

	descrs := make([]string, len(due))
	for i, e := range due {
		descrs[i] = e.Descr
	}
	if err := m.st.MarkReported(tx, store.PurposeChanges, descrs, now); err != nil {
		return store.Rollback, err
	}
	m.reported = append(m.reported, due...)
	m.log.Infow("pass committed", "pass", pass, "reported", len(due))
	return store.Commit, nil
}

// deliver attempts delivery to every recipient independently and returns how
// many succeeded. Per-recipient failures are collected, never fatal.
func (m *Monitor) deliver(recipients []string, text string) int {
	delivered := 0
	for _, r := range recipients {
		if err := m.channel.Deliver(r, text); err != nil {
			m.collect(report.NewFailure("recipient "+r, err))
			continue
		}
		delivered++
	}
	return delivered
}
