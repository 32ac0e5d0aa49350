package enhance

import "errors"

// ErrOutputExists indicates the output TextGrid exists and overwriting is disabled.
var ErrOutputExists = errors.New("output file already exists")

// ErrDestinationLocked indicates another run holds the destination directory.
var ErrDestinationLocked = errors.New("destination directory is locked by another run")

// ErrMissingTextGrid indicates a recording has no source TextGrid.
var ErrMissingTextGrid = errors.New("missing TextGrid")
