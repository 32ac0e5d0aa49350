// Package lexicon loads pronunciation dictionaries and reconstructs which
// phones each word of an utterance consumed.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reserved marks. They never appear in a dictionary file and always stand
// for exactly one phone carrying the same mark.
const (
	Space  = "SP"
	Breath = "AP"
)

// IsLexical reports whether mark denotes a dictionary word or phoneme,
// as opposed to an unlabeled gap, a space or a breath.
func IsLexical(mark string) bool {
	return mark != "" && mark != Space && mark != Breath
}

// Mode selects how repeated symbols are handled while loading.
type Mode int

const (
	// Single keeps one pronunciation per symbol; a later line overwrites.
	Single Mode = iota
	// Multi keeps every pronunciation in file order.
	Multi
)

// String returns the mode name used in flags and logs.
func (m Mode) String() string {
	if m == Multi {
		return "multi"
	}
	return "single"
}

// Dictionary maps a symbol to its ordered pronunciation candidates.
type Dictionary struct {
	mode    Mode
	entries map[string][][]string
}

// New creates an empty dictionary.
func New(mode Mode) *Dictionary {
	return &Dictionary{mode: mode, entries: make(map[string][][]string)}
}

// Add registers a pronunciation for symbol according to the dictionary mode.
// Symbol and phonemes are NFC-normalized. In Multi mode an exact duplicate of
// an existing candidate is ignored.
func (d *Dictionary) Add(symbol string, phonemes []string) {
	symbol = norm.NFC.String(symbol)
	pron := make([]string, len(phonemes))
	for i, p := range phonemes {
		pron[i] = norm.NFC.String(p)
	}

	if d.mode == Single {
		d.entries[symbol] = [][]string{pron}
		return
	}
	for _, c := range d.entries[symbol] {
		if slices.Equal(c, pron) {
			return
		}
	}
	d.entries[symbol] = append(d.entries[symbol], pron)
}

// Load reads a dictionary in "symbol<TAB>ph1 ph2 ..." format.
// Blank lines and lines starting with '#' are skipped.
func Load(r io.Reader, mode Mode) (*Dictionary, error) {
	d := New(mode)
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		symbol, rest, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: %w: missing tab separator", lineNum, ErrSyntax)
		}
		symbol = strings.TrimSpace(symbol)
		phonemes := strings.Fields(rest)
		if symbol == "" || len(phonemes) == 0 {
			return nil, fmt.Errorf("line %d: %w: empty symbol or pronunciation", lineNum, ErrSyntax)
		}
		d.Add(symbol, phonemes)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, mode Mode) (*Dictionary, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided dictionary path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	d, err := Load(f, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Mode returns the loading mode of the dictionary.
func (d *Dictionary) Mode() Mode {
	return d.mode
}

// Len returns the number of distinct symbols.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Lookup returns the pronunciation candidates of symbol in dictionary order.
// SP and AP resolve to themselves without consulting the entries.
func (d *Dictionary) Lookup(symbol string) ([][]string, bool) {
	if symbol == Space || symbol == Breath {
		return [][]string{{symbol}}, true
	}
	c, ok := d.entries[norm.NFC.String(symbol)]
	return c, ok
}

// Has reports whether symbol can be looked up.
func (d *Dictionary) Has(symbol string) bool {
	_, ok := d.Lookup(symbol)
	return ok
}

// Symbols returns all symbols in sorted order.
func (d *Dictionary) Symbols() []string {
	out := make([]string, 0, len(d.entries))
	for s := range d.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// PhonemeSet returns every phoneme used by any pronunciation, sorted.
func (d *Dictionary) PhonemeSet() []string {
	seen := make(map[string]struct{})
	for _, cands := range d.entries {
		for _, c := range cands {
			for _, p := range c {
				seen[p] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Missing returns the lexical words that have no entry, deduplicated in
// order of first occurrence.
func (d *Dictionary) Missing(words []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range words {
		if !IsLexical(w) || d.Has(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
