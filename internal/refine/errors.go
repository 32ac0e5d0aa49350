package refine

import "errors"

// ErrTierShape indicates word and phone tiers that cannot be paired:
// non-contiguous tiers, mismatched spans, or phone counts that disagree
// with the word groups.
var ErrTierShape = errors.New("inconsistent word/phone tiers")

// ErrInvalidParams indicates refinement parameters outside their valid range.
var ErrInvalidParams = errors.New("invalid refinement parameters")

// ErrMissingEvidence indicates Run was called without acoustic evidence.
var ErrMissingEvidence = errors.New("missing acoustic evidence")
