package monitor

import "github.com/cockroachdb/errors"

// ErrInsufficientData marks a failed consensus determination: too few
// candidates, too few successful samples, or too weak a majority. The slot is
// left at its prior persisted value.
var ErrInsufficientData = errors.New("insufficient consensus data")

// ErrAmbiguousResolution marks a configured target that matched more
// subcategories than allowed; the target is skipped for the run.
var ErrAmbiguousResolution = errors.New("ambiguous resolution")
