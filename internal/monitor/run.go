package monitor

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"wb-sppmon/internal/models"
	"wb-sppmon/internal/notify"
	"wb-sppmon/internal/report"
	"wb-sppmon/internal/store"
)

// Run executes one full monitoring batch: tracked products, the category
// tree, then slot discovery and consensus for every configured target.
// Collected failures are reported to the admin contacts at the end; a run is
// only fatal when that escalation path itself is completely dead.
func (m *Monitor) Run() (*report.RunResult, error) {
	m.runID = uuid.NewString()
	m.failures = nil
	m.summaries = nil
	m.reported = nil
	m.log.Infow("run started", "run_id", m.runID)

	if err := m.ProductsPass(); err != nil {
		return nil, err
	}
	if err := m.CategoriesPass(); err != nil {
		return nil, err
	}

	for _, target := range m.targets.Categories {
		matches, err := m.ResolveTarget(target)
		if err != nil {
			return nil, err
		}
		for _, rt := range matches {
			if err := m.SlotsPass(rt); err != nil {
				return nil, err
			}
		}
	}

	if err := m.reportFailures(); err != nil {
		return nil, err
	}

	result := &report.RunResult{
		RunID:     m.runID,
		Summaries: m.summaries,
		Reported:  m.reported,
		Failures:  m.failures,
	}
	if m.cfg.ExportDir != "" {
		path, err := report.ExportWorkbook(m.cfg.ExportDir, m.runID, m.summaries, m.reported, m.failures)
		if err != nil {
			m.log.Errorw("workbook export failed", "err", err)
		} else {
			m.log.Infow("workbook exported", "path", path)
		}
	}
	m.log.Infow("run finished", "run_id", m.runID,
		"passes", len(m.summaries), "reported", len(m.reported), "failures", len(m.failures))
	return result, nil
}

// SlotsPass discovers the price slots of one resolved target and determines
// each slot's consensus discount. A slot whose consensus moved produces a
// reportable change; first-ever determinations are persisted silently.
func (m *Monitor) SlotsPass(rt resolvedTarget) error {
	startedAt := m.now()
	return m.gatedPass("slots", func(tx *gorm.DB) ([]report.Entry, error) {
		sum := models.RunSummary{RunID: m.runID, Pass: "slots", StartedAt: startedAt}

		slots, err := m.discoverSlots(tx, rt, &sum)
		if err != nil {
			return nil, err
		}

		var entries []report.Entry
		for _, slot := range slots {
			changed, firstDetermination, err := m.determineSlot(slot, startedAt)
			if err != nil {
				m.collect(report.NewFailure(slot.String(), err))
				sum.Failures++
				continue
			}
			switch {
			case firstDetermination:
				sum.New++
			case changed:
				sum.Updated++
				entries = append(entries, report.Entry{
					Descr: "slot " + strconv.FormatUint(uint64(slot.ID), 10),
					Line:  describeSlotChange(slot),
				})
			default:
				sum.Unchanged++
			}
			if err := m.st.Save(tx, slot); err != nil {
				return nil, err
			}
		}

		m.summaries = append(m.summaries, sum)
		if err := m.st.SaveSummary(tx, &sum); err != nil {
			return nil, err
		}
		m.log.Infow("slots pass done", "subcategory", rt.sub.ID,
			"slots", len(slots), "updated", sum.Updated, "failures", sum.Failures)
		return entries, nil
	})
}

// reportFailures delivers the run's collected failures to the admin contacts,
// filtered through the errors ledger so a persistent failure is not repeated
// every run. Admins that missed the report because only some deliveries
// succeeded get an escalation note instead. All admins unreachable is fatal:
// nobody knows the monitor is degraded.
func (m *Monitor) reportFailures() error {
	if len(m.failures) == 0 {
		return nil
	}
	if len(m.targets.AdminRecipients) == 0 {
		return errors.Newf("%d failures collected but no admin contacts configured", len(m.failures))
	}
	return m.st.InTx(func(tx *gorm.DB) (store.Outcome, error) {
		now := m.now()
		var due []report.Failure
		for _, f := range m.failures {
			within, err := m.st.ReportedWithin(tx, store.PurposeErrors, f.Descr, m.cfg.ReportErrorsDelay, now)
			if err != nil {
				return store.Rollback, err
			}
			if within {
				m.log.Debugw("failure report suppressed by ledger", "entity", f.Descr)
				continue
			}
			due = append(due, f)
		}
		if len(due) == 0 {
			return store.Commit, nil
		}

		text := report.ComposeFailures(due)
		var reached, missed []string
		for _, r := range m.targets.AdminRecipients {
			if err := m.channel.Deliver(r, text); err != nil {
				m.log.Errorw("admin delivery failed", "recipient", r, "err", err)
				missed = append(missed, r)
				continue
			}
			reached = append(reached, r)
		}
		if len(reached) == 0 {
			return store.Rollback, errors.Mark(
				errors.Newf("failure report unreachable for all %d admin contacts",
					len(m.targets.AdminRecipients)),
				notify.ErrDelivery)
		}
		if len(missed) > 0 {
			escalation := report.ComposeEscalation(missed)
			for _, r := range reached {
				if err := m.channel.Deliver(r, escalation); err != nil {
					m.log.Errorw("escalation delivery failed", "recipient", r, "err", err)
				}
			}
		}

		descrs := make([]string, len(due))
		for i, f := range due {
			descrs[i] = f.Descr
		}
		if err := m.st.MarkReported(tx, store.PurposeErrors, descrs, now); err != nil {
			return store.Rollback, err
		}
		return store.Commit, nil
	})
}
