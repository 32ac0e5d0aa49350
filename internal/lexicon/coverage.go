package lexicon

// Coverage accumulates how often each dictionary phoneme occurs in a set of
// transcriptions, and which syllables could not be resolved.
type Coverage struct {
	dict   *Dictionary
	counts map[string]int
}

// NewCoverage creates a Coverage with a zero count for every phoneme of dict.
func NewCoverage(dict *Dictionary) *Coverage {
	c := &Coverage{dict: dict, counts: make(map[string]int)}
	for _, p := range dict.PhonemeSet() {
		c.counts[p] = 0
	}
	return c
}

// Add counts the phonemes of the first pronunciation of every syllable and
// returns the syllables missing from the dictionary, in order.
func (c *Coverage) Add(syllables []string) []string {
	var oov []string
	for _, s := range syllables {
		cands, ok := c.dict.Lookup(s)
		if !ok {
			oov = append(oov, s)
			continue
		}
		for _, p := range cands[0] {
			c.counts[p]++
		}
	}
	return oov
}

// Count returns the number of occurrences of phoneme.
func (c *Coverage) Count(phoneme string) int {
	return c.counts[phoneme]
}

// Uncovered returns the dictionary phonemes that were never counted, sorted.
func (c *Coverage) Uncovered() []string {
	var out []string
	for _, p := range c.dict.PhonemeSet() {
		if c.counts[p] == 0 {
			out = append(out, p)
		}
	}
	return out
}
