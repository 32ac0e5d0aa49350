package textgrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Write serializes tg in Praat's long text format.
// Times are written with the shortest representation that reads back exactly.
func Write(w io.Writer, tg *TextGrid) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		_, _ = fmt.Fprintf(bw, format, args...)
	}

	p("File type = \"ooTextFile\"\n")
	p("Object class = \"TextGrid\"\n\n")
	p("xmin = %s\n", formatTime(tg.MinTime))
	p("xmax = %s\n", formatTime(tg.MaxTime))
	if len(tg.Tiers) == 0 {
		p("tiers? <absent>\n")
		return bw.Flush()
	}
	p("tiers? <exists>\n")
	p("size = %d\n", len(tg.Tiers))
	p("item []:\n")
	for i, t := range tg.Tiers {
		p("    item [%d]:\n", i+1)
		p("        class = %s\n", quote(t.Class))
		p("        name = %s\n", quote(t.Name))
		p("        xmin = %s\n", formatTime(t.MinTime))
		p("        xmax = %s\n", formatTime(t.MaxTime))
		if t.IsInterval() {
			p("        intervals: size = %d\n", len(t.Intervals))
			for j, iv := range t.Intervals {
				p("        intervals [%d]:\n", j+1)
				p("            xmin = %s\n", formatTime(iv.MinTime))
				p("            xmax = %s\n", formatTime(iv.MaxTime))
				p("            text = %s\n", quote(iv.Mark))
			}
			continue
		}
		p("        points: size = %d\n", len(t.Points))
		for j, pt := range t.Points {
			p("        points [%d]:\n", j+1)
			p("            number = %s\n", formatTime(pt.Time))
			p("            mark = %s\n", quote(pt.Mark))
		}
	}
	return bw.Flush()
}

// WriteFile writes tg to path through a temporary file in the same
// directory, so a failed write never leaves a truncated TextGrid behind.
func WriteFile(path string, tg *TextGrid) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := Write(tmp, tg); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func formatTime(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
