package lexicon

import (
	"fmt"
	"slices"
	"strings"
)

// Outcome tags the result of a reconstruction.
type Outcome int

const (
	NoMatch Outcome = iota
	Matched
)

// String returns "matched" or "no match".
func (o Outcome) String() string {
	if o == Matched {
		return "matched"
	}
	return "no match"
}

// Reconstruction is the result of Matcher.Reconstruct. Groups holds one
// phone slice per word when Outcome is Matched and is nil otherwise.
type Reconstruction struct {
	Outcome Outcome
	Groups  [][]string
}

// Matcher splits a flat phone sequence into per-word groups using the
// pronunciation candidates of a Dictionary.
type Matcher struct {
	dict *Dictionary
}

// NewMatcher creates a Matcher backed by dict.
func NewMatcher(dict *Dictionary) *Matcher {
	return &Matcher{dict: dict}
}

// choice is one level of the search: the phone offset at which a word
// starts and the index of the candidate currently tried for it.
type choice struct {
	offset    int
	candidate int
}

// Reconstruct finds, depth first, the first assignment of one candidate
// per word whose concatenation equals phones exactly. Candidates are tried
// in dictionary order, so the result is deterministic. A word without an
// entry has no candidates and makes the search fail.
func (m *Matcher) Reconstruct(words, phones []string) Reconstruction {
	stack := make([]choice, 1, len(words)+1)

	for len(stack) > 0 {
		depth := len(stack) - 1
		top := &stack[depth]

		if depth == len(words) {
			if top.offset == len(phones) {
				return Reconstruction{Outcome: Matched, Groups: m.groups(words, stack)}
			}
			stack = m.backtrack(stack)
			continue
		}

		cands, _ := m.dict.Lookup(words[depth])
		pushed := false
		for ; top.candidate < len(cands); top.candidate++ {
			c := cands[top.candidate]
			if hasPrefixAt(phones, top.offset, c) {
				stack = append(stack, choice{offset: top.offset + len(c)})
				pushed = true
				break
			}
		}
		if !pushed {
			stack = m.backtrack(stack)
		}
	}
	return Reconstruction{Outcome: NoMatch}
}

// backtrack drops the deepest level and moves its parent to the next candidate.
func (m *Matcher) backtrack(stack []choice) []choice {
	stack = stack[:len(stack)-1]
	if len(stack) > 0 {
		stack[len(stack)-1].candidate++
	}
	return stack
}

func (m *Matcher) groups(words []string, stack []choice) [][]string {
	out := make([][]string, len(words))
	for i, w := range words {
		cands, _ := m.dict.Lookup(w)
		out[i] = slices.Clone(cands[stack[i].candidate])
	}
	return out
}

// Groups reconstructs the per-word phone groups and converts failures into
// errors: ErrMissingEntry for words without an entry, ErrNoReconstruction
// when the dictionary cannot explain the phone sequence.
func (m *Matcher) Groups(words, phones []string) ([][]string, error) {
	if missing := m.dict.Missing(words); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntry, strings.Join(missing, ", "))
	}
	r := m.Reconstruct(words, phones)
	if r.Outcome != Matched {
		return nil, fmt.Errorf("%w: words %v, phones %v", ErrNoReconstruction, words, phones)
	}
	return r.Groups, nil
}

func hasPrefixAt(phones []string, offset int, candidate []string) bool {
	if offset+len(candidate) > len(phones) {
		return false
	}
	return slices.Equal(phones[offset:offset+len(candidate)], candidate)
}
