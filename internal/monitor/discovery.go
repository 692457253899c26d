package monitor

import (
	"math"

	"gorm.io/gorm"

	"wb-sppmon/internal/models"
	"wb-sppmon/internal/report"
)

// discoverSlots partitions the target's price window into step-width slots
// and fills their candidate sets by walking catalog pages with a shrinking
// price ceiling. The walk is geometric: each probe's ceiling is the previous
// one scaled by a ratio chosen so that no slot can be skipped over, and it
// stops below a floor derived from the maximum plausible discount.
//
// A failed probe abandons only its price band; discovery keeps walking so a
// partial outage still yields candidates for the remaining slots.
func (m *Monitor) discoverSlots(tx *gorm.DB, rt resolvedTarget, sum *models.RunSummary) ([]*models.PriceSlot, error) {
	slots, err := m.partition(tx, rt)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}

	narrowest := slots[0].PriceTo - slots[0].PriceFrom
	for _, s := range slots[1:] {
		if w := s.PriceTo - s.PriceFrom; w < narrowest {
			narrowest = w
		}
	}

	priceMax := float64(rt.target.PriceMax)
	ratio := 1 - narrowest/priceMax

	// The lowest sale price worth probing: a product listed at the window's
	// bottom cannot sell below it discounted by the maximum plausible
	// discount. Clamped away from zero so the walk terminates.
	floor := float64(rt.target.PriceMin) * (1 - float64(m.cfg.MaxPlausibleDiscount)/100)
	if floor < 1 {
		floor = 1
	}

	for ceiling := priceMax; ceiling > floor; ceiling *= ratio {
		if err := m.probe(rt, slots, ceiling, sum); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

// partition materializes the step-width slots covering [PriceMin, PriceMax).
// The last slot is truncated when the step does not divide the window evenly.
// Slots are persisted so consensus discounts survive across runs.
func (m *Monitor) partition(tx *gorm.DB, rt resolvedTarget) ([]*models.PriceSlot, error) {
	min, max := float64(rt.target.PriceMin), float64(rt.target.PriceMax)
	step := float64(rt.target.PriceStep)

	var slots []*models.PriceSlot
	for from := min; from < max; from += step {
		to := math.Min(from+step, max)
		slot, err := m.st.SlotFor(tx, rt.sub.ID, from, to)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// probe fetches a bounded number of catalog pages below one price ceiling and
// assigns the listed articles to the slots containing their sale price.
func (m *Monitor) probe(rt resolvedTarget, slots []*models.PriceSlot, ceiling float64, sum *models.RunSummary) error {
	for page := 1; page <= m.cfg.CatalogPagesPerProbe; page++ {
		items, err := m.src.CatalogPage(rt.shard, rt.query, rt.sub.ID, ceiling, page)
		if err != nil {
			m.collect(report.NewFailure(rt.sub.String(), err))
			sum.Failures++
			return nil
		}
		if len(items) == 0 {
			return nil
		}
		for _, item := range items {
			for _, slot := range slots {
				if slot.Contains(item.PriceSale) {
					slot.AddCandidate(item.Article)
					break
				}
			}
		}
	}
	return nil
}
