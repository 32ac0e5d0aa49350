package acoustic

import "errors"

// ErrUnsupportedAudio indicates the input is not a PCM WAV file the analyzer can decode.
var ErrUnsupportedAudio = errors.New("unsupported audio")

// ErrInvalidSettings indicates analyzer settings that cannot produce curves.
var ErrInvalidSettings = errors.New("invalid analyzer settings")
