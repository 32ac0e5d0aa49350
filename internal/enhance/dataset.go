package enhance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Recording locates the files of one recording.
type Recording struct {
	Name    string // file stem shared by the WAV and TextGrid files
	WavPath string
	SrcPath string // aligned TextGrid
	DstPath string // refined TextGrid
}

// TextGridExt is the extension of TextGrid files.
const TextGridExt = ".TextGrid"

// Discover lists the recordings of wavDir in name order. Source and
// destination TextGrids are expected as <name>.TextGrid under srcDir and
// dstDir; their existence is not checked.
func Discover(wavDir, srcDir, dstDir string) ([]Recording, error) {
	wavs, err := filepath.Glob(filepath.Join(wavDir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", wavDir, err)
	}
	sort.Strings(wavs)

	recs := make([]Recording, 0, len(wavs))
	for _, w := range wavs {
		name := strings.TrimSuffix(filepath.Base(w), filepath.Ext(w))
		recs = append(recs, Recording{
			Name:    name,
			WavPath: w,
			SrcPath: filepath.Join(srcDir, name+TextGridExt),
			DstPath: filepath.Join(dstDir, name+TextGridExt),
		})
	}
	return recs, nil
}

// MissingTextGrids returns the source TextGrid paths that do not exist.
func MissingTextGrids(recs []Recording) []string {
	var missing []string
	for _, r := range recs {
		if _, err := os.Stat(r.SrcPath); err != nil {
			missing = append(missing, r.SrcPath)
		}
	}
	return missing
}

// ReadLabel reads the whitespace-separated syllables of a .lab transcription.
func ReadLabel(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path derived from the WAV list
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(data)), nil
}

// LabelPath returns the .lab transcription path next to a WAV file.
func LabelPath(wavPath string) string {
	return strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".lab"
}
