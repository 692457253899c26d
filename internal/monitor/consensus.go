package monitor

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"wb-sppmon/internal/models"
)

// determineSlot samples candidate products of one slot and derives the slot's
// client discount by majority vote. Returns whether the determination changed
// the stored discount and whether this was the slot's first ever successful
// determination (which is not a reportable change).
func (m *Monitor) determineSlot(slot *models.PriceSlot, fetchedAt time.Time) (changed, first bool, err error) {
	candidates := slot.Candidates()
	if len(candidates) < m.cfg.SlotMinSamples {
		// not worth a single remote call, discovery came up short
		return false, false, errors.Mark(
			errors.Newf("%d candidates discovered, at least %d samples required",
				len(candidates), m.cfg.SlotMinSamples),
			ErrInsufficientData)
	}
	if len(candidates) > m.cfg.SlotMaxSamples {
		// map iteration order already shuffled the candidate set
		candidates = candidates[:m.cfg.SlotMaxSamples]
	}

	tally := make(map[int]int)
	successes := 0
	for _, article := range candidates {
		_, details, err := m.src.ProductDetails(article)
		if err != nil {
			m.log.Debugw("sample failed", "slot", slot.String(), "article", article, "err", err)
			continue
		}
		successes++
		tally[details.DiscountClient]++
	}

	if successes < m.cfg.SlotMinSamples {
		return false, false, errors.Mark(
			errors.Newf("%d of at least %d samples succeeded", successes, m.cfg.SlotMinSamples),
			ErrInsufficientData)
	}

	winner, votes := winningDiscount(tally)
	strength := votes * 100 / m.cfg.SlotMinSamples
	if strength < m.cfg.SlotMinConsensusPercent {
		return false, false, errors.Mark(
			errors.Newf("consensus strength %d%% below required %d%% (discount %d, %d votes)",
				strength, m.cfg.SlotMinConsensusPercent, winner, votes),
			ErrInsufficientData)
	}

	first = slot.Discount == nil
	changed = slot.UpdateDiscount(fetchedAt, winner)
	return changed, first, nil
}

// winningDiscount picks the most voted discount; ties break toward the
// smaller discount so repeated runs over the same tally are stable.
func winningDiscount(tally map[int]int) (discount, votes int) {
	firstSeen := true
	for d, n := range tally {
		if firstSeen || n > votes || (n == votes && d < discount) {
			discount, votes = d, n
			firstSeen = false
		}
	}
	return discount, votes
}

// describeSlotChange renders one change line from the slot's diff snapshot.
func describeSlotChange(slot *models.PriceSlot) string {
	line := slot.String()
	if slot.Discount != nil {
		if prev, ok := slot.OldValues()["discount"]; ok && prev != nil {
			if p, ok := prev.(*int); ok && p != nil {
				return line + fmt.Sprintf(": spp %d -> %d", *p, *slot.Discount)
			}
		}
		return line + fmt.Sprintf(": spp %d", *slot.Discount)
	}
	return line
}
