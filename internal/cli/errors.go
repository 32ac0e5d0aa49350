package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrFileNotFound indicates an input file or directory does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoRecordings indicates the WAV directory holds no .wav files.
	ErrNoRecordings = errors.New("no recordings found")

	// ErrNoDestination indicates neither --dst nor batch.output_dir is set.
	ErrNoDestination = errors.New("no destination directory")

	// ErrInvalidFlag indicates a flag value outside its valid range.
	ErrInvalidFlag = errors.New("invalid flag value")

	// ErrCheckFailed indicates the dataset check found problems.
	ErrCheckFailed = errors.New("dataset check failed")

	// ErrPartialFailure indicates some files of a batch failed.
	ErrPartialFailure = errors.New("some files failed")

	// ErrInterrupted indicates the batch was stopped by Ctrl+C.
	ErrInterrupted = errors.New("interrupted")
)
