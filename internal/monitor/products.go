package monitor

import (
	"fmt"

	"gorm.io/gorm"

	"wb-sppmon/internal/models"
	"wb-sppmon/internal/report"
)

// ProductsPass refreshes every tracked article against the remote catalog in
// one transaction. Newly observed products are created silently; a product
// whose client discount moved produces a reportable change.
func (m *Monitor) ProductsPass() error {
	startedAt := m.now()
	return m.gatedPass("products", func(tx *gorm.DB) ([]report.Entry, error) {
		products, err := m.st.Products(tx)
		if err != nil {
			return nil, err
		}

		sum := models.RunSummary{RunID: m.runID, Pass: "products", StartedAt: startedAt}
		var entries []report.Entry

		for _, article := range m.targets.Articles {
			fetchedAt, details, err := m.src.ProductDetails(article)
			if err != nil {
				m.collect(report.NewFailure("article "+article, err))
				sum.Failures++
				continue
			}

			p, known := products[article]
			if !known {
				p = &models.Product{
					Article:        article,
					Name:           details.Name,
					Price:          details.Price,
					PriceSale:      details.PriceSale,
					DiscountBase:   details.DiscountBase,
					DiscountClient: details.DiscountClient,
					Fetched:        models.Fetched{FetchedAt: fetchedAt},
				}
				if err := m.st.Save(tx, p); err != nil {
					return nil, err
				}
				products[article] = p
				sum.New++
				m.log.Infow("new product", "article", article, "name", details.Name)
				continue
			}

			changed := p.Update(fetchedAt, models.ProductValues{
				Name:           details.Name,
				Price:          details.Price,
				PriceSale:      details.PriceSale,
				DiscountBase:   details.DiscountBase,
				DiscountClient: details.DiscountClient,
			})
			if !changed {
				sum.Unchanged++
				continue
			}
			if err := m.st.Save(tx, p); err != nil {
				return nil, err
			}
			sum.Updated++
			entries = append(entries, report.Entry{
				Descr: "product " + article,
				Line:  describeProductChange(p),
			})
		}

		sum.Disappeared = len(products) - sum.New - sum.Updated - sum.Unchanged
		m.summaries = append(m.summaries, sum)
		if err := m.st.SaveSummary(tx, &sum); err != nil {
			return nil, err
		}
		m.log.Infow("products pass done",
			"new", sum.New, "updated", sum.Updated, "unchanged", sum.Unchanged,
			"disappeared", sum.Disappeared, "failures", sum.Failures)
		return entries, nil
	})
}

// describeProductChange renders one change line from the product's diff
// snapshot.
func describeProductChange(p *models.Product) string {
	old := p.OldValues()
	line := p.String()
	if prev, ok := old["discount_client"]; ok {
		line += fmt.Sprintf(" (spp %v -> %d)", prev, p.DiscountClient)
	} else if prev, ok := old["price_sale"]; ok {
		line += fmt.Sprintf(" (sale %v -> %.2f)", prev, p.PriceSale)
	}
	return line
}
