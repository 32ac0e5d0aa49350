package textgrid

import "errors"

// ErrSyntax indicates the file is not a well-formed TextGrid text file.
var ErrSyntax = errors.New("textgrid syntax error")

// ErrTierNotFound indicates a required tier is missing from the TextGrid.
var ErrTierNotFound = errors.New("tier not found")

// ErrShape indicates a tier's intervals are not contiguous or do not cover the tier.
var ErrShape = errors.New("malformed tier")
