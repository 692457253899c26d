package monitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"

	"wb-sppmon/internal/config"
	"wb-sppmon/internal/index"
	"wb-sppmon/internal/models"
	"wb-sppmon/internal/report"
	"wb-sppmon/internal/store"
)

// CategoriesPass refreshes the whole category tree in one transaction and
// keeps the persisted category name index current. Categories are never
// deleted; nodes missing from the fetched tree only show up in the
// disappeared count.
func (m *Monitor) CategoriesPass() error {
	startedAt := m.now()
	return m.gatedPass("categories", func(tx *gorm.DB) ([]report.Entry, error) {
		fetchedAt, nodes, err := m.src.Categories()
		if err != nil {
			// the tree endpoint failing leaves the stored tree in place
			m.collect(report.NewFailure("category tree", err))
			return nil, nil
		}

		cats, err := m.st.Categories(tx)
		if err != nil {
			return nil, err
		}
		idx, err := m.st.LoadIndex(tx, store.IdxCategoryName)
		if err != nil {
			return nil, err
		}

		sum := models.RunSummary{RunID: m.runID, Pass: "categories", StartedAt: startedAt}
		var entries []report.Entry

		for _, n := range nodes {
			vals := models.CategoryValues{
				Name:       n.Name,
				SearchName: n.SearchName,
				URL:        n.URL,
				ParentID:   n.ParentID,
				Shard:      n.Shard,
				Query:      n.Query,
				ChildCount: n.ChildCount,
			}

			c, known := cats[n.ID]
			switch {
			case !known:
				c = &models.Category{
					ID:         n.ID,
					Name:       n.Name,
					SearchName: n.SearchName,
					URL:        n.URL,
					ParentID:   n.ParentID,
					Shard:      n.Shard,
					Query:      n.Query,
					ChildCount: n.ChildCount,
					Fetched:    models.Fetched{FetchedAt: fetchedAt},
				}
				if err := m.st.Save(tx, c); err != nil {
					return nil, err
				}
				cats[n.ID] = c
				sum.New++
			case c.Update(fetchedAt, vals):
				if err := m.st.Save(tx, c); err != nil {
					return nil, err
				}
				sum.Updated++
				entries = append(entries, report.Entry{
					Descr: "category " + strconv.FormatInt(c.ID, 10),
					Line:  c.String() + describeRename(c.OldValues()),
				})
			default:
				sum.Unchanged++
			}

			if err := m.ensureIndexed(tx, idx, store.IdxCategoryName, c.Name, c.ID); err != nil {
				return nil, err
			}
			if c.SearchName != nil {
				if err := m.ensureIndexed(tx, idx, store.IdxCategoryName, *c.SearchName, c.ID); err != nil {
					return nil, err
				}
			}
		}

		sum.Disappeared = len(cats) - sum.New - sum.Updated - sum.Unchanged
		m.summaries = append(m.summaries, sum)
		if err := m.st.SaveSummary(tx, &sum); err != nil {
			return nil, err
		}

		state, err := m.st.AppState(tx)
		if err != nil {
			return nil, err
		}
		state.CategoriesLastUpdate = &startedAt
		if err := m.st.Save(tx, state); err != nil {
			return nil, err
		}

		m.log.Infow("categories pass done",
			"new", sum.New, "updated", sum.Updated, "unchanged", sum.Unchanged,
			"disappeared", sum.Disappeared)
		return entries, nil
	})
}

// resolvedTarget couples a matched subcategory with the routing fields of its
// owning category and the configured price window.
type resolvedTarget struct {
	target config.CategoryTarget
	sub    *models.Subcategory
	shard  string
	query  string
}

// ResolveTarget refreshes the subcategories of the categories matching one
// configured target and resolves the target's subcategory name against them.
// The refresh runs as its own gated pass; resolution failures (nothing
// matched, too many matched) are collected and yield an empty result.
func (m *Monitor) ResolveTarget(target config.CategoryTarget) ([]resolvedTarget, error) {
	startedAt := m.now()
	var matches []resolvedTarget

	err := m.gatedPass("subcategories", func(tx *gorm.DB) ([]report.Entry, error) {
		cats, err := m.st.Categories(tx)
		if err != nil {
			return nil, err
		}
		catIdx, err := m.st.LoadIndex(tx, store.IdxCategoryName)
		if err != nil {
			return nil, err
		}

		matchedCats := m.matchCategories(cats, catIdx, target.CategoryName)
		if len(matchedCats) == 0 {
			m.collect(report.NewFailure("target "+target.String(),
				errors.Newf("no category matched %q", target.CategoryName)))
			return nil, nil
		}

		sum := models.RunSummary{RunID: m.runID, Pass: "subcategories", StartedAt: startedAt}
		var entries []report.Entry

		for _, cat := range matchedCats {
			subEntries, found, err := m.refreshSubcategories(tx, cat, target, &sum, startedAt)
			if err != nil {
				return nil, err
			}
			entries = append(entries, subEntries...)
			matches = append(matches, found...)
		}

		if len(matches) > m.cfg.MaxMatchedSubcategories {
			m.collect(report.NewFailure("target "+target.String(),
				errors.Mark(errors.Newf("%d subcategories matched %q, at most %d allowed",
					len(matches), target.SubcategoryName, m.cfg.MaxMatchedSubcategories), ErrAmbiguousResolution)))
			matches = nil
		} else if len(matches) == 0 {
			m.collect(report.NewFailure("target "+target.String(),
				errors.Newf("no subcategory matched %q", target.SubcategoryName)))
		}

		m.summaries = append(m.summaries, sum)
		if err := m.st.SaveSummary(tx, &sum); err != nil {
			return nil, err
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// matchCategories resolves a configured category name to concrete categories
// carrying routing fields. Purely numeric input is an exact identifier match.
func (m *Monitor) matchCategories(cats map[int64]*models.Category, catIdx *index.Multi[int64], name string) []*models.Category {
	var ids []int64
	if index.Numeric(name) {
		id, _ := strconv.ParseInt(name, 10, 64)
		ids = []int64{id}
	} else {
		ids = index.Fuzzy(catIdx, name, m.cfg.SearchMinChars, m.cfg.SearchMaxSuffix)
	}

	var out []*models.Category
	for _, id := range ids {
		// stale index keys may point at ids the tree no longer carries
		if c, ok := cats[id]; ok && c.HasRouting() {
			out = append(out, c)
		}
	}
	return out
}

// refreshSubcategories fetches and reconciles the subcategories of one
// category, then resolves the target's subcategory name against the
// category's name index.
func (m *Monitor) refreshSubcategories(tx *gorm.DB, cat *models.Category, target config.CategoryTarget, sum *models.RunSummary, startedAt time.Time) ([]report.Entry, []resolvedTarget, error) {
	indexName := store.SubcategoryNameIndex(cat.ID)
	subIdx, err := m.st.LoadIndex(tx, indexName)
	if err != nil {
		return nil, nil, err
	}
	known, err := m.st.Subcategories(tx, cat.ID)
	if err != nil {
		return nil, nil, err
	}

	fetchedAt, infos, err := m.src.Subcategories(*cat.Shard, *cat.Query)
	if err != nil {
		m.collect(report.NewFailure(cat.String(), err))
		sum.Failures++
		return nil, nil, nil
	}

	var entries []report.Entry
	var created, updated, unchanged int
	for _, info := range infos {
		s, ok := known[info.ID]
		switch {
		case !ok:
			s = &models.Subcategory{
				ID:         info.ID,
				Name:       info.Name,
				CategoryID: cat.ID,
				Fetched:    models.Fetched{FetchedAt: fetchedAt},
			}
			if err := m.st.Save(tx, s); err != nil {
				return nil, nil, err
			}
			known[info.ID] = s
			created++
		case s.Update(fetchedAt, models.SubcategoryValues{Name: info.Name, CategoryID: cat.ID}):
			if err := m.st.Save(tx, s); err != nil {
				return nil, nil, err
			}
			updated++
			entries = append(entries, report.Entry{
				Descr: "subcategory " + strconv.FormatInt(s.ID, 10),
				Line:  s.String() + describeRename(s.OldValues()),
			})
		default:
			unchanged++
		}

		if err := m.ensureIndexed(tx, subIdx, indexName, s.Name, s.ID); err != nil {
			return nil, nil, err
		}
	}
	sum.New += created
	sum.Updated += updated
	sum.Unchanged += unchanged
	sum.Disappeared += len(known) - created - updated - unchanged

	cat.SubcategoriesLastUpdate = &startedAt
	if err := m.st.Save(tx, cat); err != nil {
		return nil, nil, err
	}

	var ids []int64
	if index.Numeric(target.SubcategoryName) {
		id, _ := strconv.ParseInt(target.SubcategoryName, 10, 64)
		ids = []int64{id}
	} else {
		ids = index.Fuzzy(subIdx, target.SubcategoryName, m.cfg.SearchMinChars, m.cfg.SearchMaxSuffix)
	}

	var found []resolvedTarget
	for _, id := range ids {
		if s, ok := known[id]; ok {
			found = append(found, resolvedTarget{
				target: target,
				sub:    s,
				shard:  *cat.Shard,
				query:  *cat.Query,
			})
		}
	}
	return entries, found, nil
}

// ensureIndexed records a (key, id) pair in a persisted name index unless it
// is already present. Keys are lower-cased names.
func (m *Monitor) ensureIndexed(tx *gorm.DB, idx *index.Multi[int64], name, key string, id int64) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return nil
	}
	for _, v := range idx.Get(key) {
		if v == id {
			return nil
		}
	}
	return m.st.AppendIndex(tx, idx, name, key, id)
}

// describeRename renders the old name when a rename is part of the diff.
func describeRename(old map[string]any) string {
	if prev, ok := old["name"]; ok {
		if s, ok := prev.(string); ok {
			return " (was: " + s + ")"
		}
	}
	return ""
}
