package models

import "time"

// Fetched is embedded by every entity refreshed from the remote catalog.
// FetchedAt only advances when an update actually changed at least one field
// (or on first creation by the caller).
type Fetched struct {
	FetchedAt time.Time `json:"fetched_at"`

	// oldValues holds the previous values of the fields changed by the last
	// Update call, plus the previous fetched_at. Never persisted.
	//   nil       — entity was not checked this run (new, or loaded untouched)
	//   empty map — checked, nothing changed
	//   non-empty — changed; keys are column names, values the prior values
	oldValues map[string]any `json:"-" gorm:"-"`
}

// OldValues returns the diff snapshot left by the last Update call, or nil if
// the entity has not been through an update since it was created or loaded.
func (f *Fetched) OldValues() map[string]any {
	return f.oldValues
}

// Checked reports whether the entity went through an update this run,
// regardless of whether anything changed.
func (f *Fetched) Checked() bool {
	return f.oldValues != nil
}

// applyDiff finalizes one update: records the snapshot and, when the snapshot
// is non-empty, advances fetched_at (saving the previous one into the diff).
func (f *Fetched) applyDiff(fetchedAt time.Time, diff map[string]any) bool {
	if len(diff) > 0 {
		diff["fetched_at"] = f.FetchedAt
		f.FetchedAt = fetchedAt
	}
	f.oldValues = diff
	return len(diff) > 0
}

// diffVal stages a single field comparison: when old differs from new, the
// old value is recorded under the field's column name.
func diffVal[T comparable](diff map[string]any, column string, old, new T) {
	if old != new {
		diff[column] = old
	}
}

// diffPtr is diffVal for nullable columns; two nils are equal, nil versus
// non-nil is a change.
func diffPtr[T comparable](diff map[string]any, column string, old, new *T) {
	if old == nil && new == nil {
		return
	}
	if old != nil && new != nil && *old == *new {
		return
	}
	diff[column] = old
}
