package lexicon

import "errors"

// ErrSyntax indicates a dictionary line that is not "symbol<TAB>phonemes".
var ErrSyntax = errors.New("malformed dictionary line")

// ErrMissingEntry indicates a word symbol has no dictionary entry.
var ErrMissingEntry = errors.New("word not in dictionary")

// ErrNoReconstruction indicates no combination of pronunciations
// reproduces the observed phone sequence.
var ErrNoReconstruction = errors.New("no valid word-phone reconstruction")
