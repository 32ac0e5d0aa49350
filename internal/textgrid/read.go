package textgrid

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// tokenKind classifies the tokens that carry data in a Praat text file.
// Everything else (labels such as "xmin =" or "item [1]:") is skipped,
// which makes the same reader work for the long and the short format.
type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenText
	tokenFlag
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// ReadFile reads a TextGrid from path.
func ReadFile(path string) (*TextGrid, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the batch file list
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	tg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tg, nil
}

// Read parses a TextGrid in Praat's long or short text format.
// UTF-8 and UTF-16 (with byte order mark) inputs are accepted.
func Read(r io.Reader) (*TextGrid, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("read textgrid: %w", err)
	}

	toks, err := tokenize(string(data))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.textGrid()
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"':
			var b strings.Builder
			j := i + 1
			closed := false
			for j < len(s) {
				if s[j] == '"' {
					if j+1 < len(s) && s[j+1] == '"' {
						b.WriteByte('"')
						j += 2
						continue
					}
					closed = true
					j++
					break
				}
				b.WriteByte(s[j])
				j++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrSyntax, i)
			}
			toks = append(toks, token{kind: tokenText, text: b.String()})
			i = j
		case c == '!':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '<':
			j := strings.IndexByte(s[i:], '>')
			if j < 0 {
				return nil, fmt.Errorf("%w: unterminated flag at offset %d", ErrSyntax, i)
			}
			toks = append(toks, token{kind: tokenFlag, text: s[i+1 : i+j]})
			i += j + 1
		default:
			j := i
			for j < len(s) && !isSpace(s[j]) {
				j++
			}
			if v, err := strconv.ParseFloat(s[i:j], 64); err == nil {
				toks = append(toks, token{kind: tokenNumber, num: v})
			}
			i = j
		}
	}
	return toks, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) next(kind tokenKind, what string) (token, error) {
	if p.pos >= len(p.toks) {
		return token{}, fmt.Errorf("%w: unexpected end of file, want %s", ErrSyntax, what)
	}
	t := p.toks[p.pos]
	if t.kind != kind {
		return token{}, fmt.Errorf("%w: token %d: want %s", ErrSyntax, p.pos, what)
	}
	p.pos++
	return t, nil
}

func (p *parser) number(what string) (float64, error) {
	t, err := p.next(tokenNumber, what)
	return t.num, err
}

func (p *parser) text(what string) (string, error) {
	t, err := p.next(tokenText, what)
	return t.text, err
}

func (p *parser) count(what string) (int, error) {
	v, err := p.number(what)
	if err != nil {
		return 0, err
	}
	if v < 0 || v != float64(int(v)) {
		return 0, fmt.Errorf("%w: invalid %s %g", ErrSyntax, what, v)
	}
	return int(v), nil
}

func (p *parser) textGrid() (*TextGrid, error) {
	fileType, err := p.text("file type")
	if err != nil {
		return nil, err
	}
	if fileType != "ooTextFile" {
		return nil, fmt.Errorf("%w: file type %q", ErrSyntax, fileType)
	}
	class, err := p.text("object class")
	if err != nil {
		return nil, err
	}
	if class != "TextGrid" {
		return nil, fmt.Errorf("%w: object class %q", ErrSyntax, class)
	}

	tg := &TextGrid{}
	if tg.MinTime, err = p.number("xmin"); err != nil {
		return nil, err
	}
	if tg.MaxTime, err = p.number("xmax"); err != nil {
		return nil, err
	}
	flag, err := p.next(tokenFlag, "tiers flag")
	if err != nil {
		return nil, err
	}
	if flag.text != "exists" {
		return tg, nil
	}
	n, err := p.count("tier count")
	if err != nil {
		return nil, err
	}
	for range n {
		tier, err := p.tier()
		if err != nil {
			return nil, err
		}
		tg.Tiers = append(tg.Tiers, tier)
	}
	return tg, nil
}

func (p *parser) tier() (Tier, error) {
	var t Tier
	var err error
	if t.Class, err = p.text("tier class"); err != nil {
		return t, err
	}
	if t.Name, err = p.text("tier name"); err != nil {
		return t, err
	}
	if t.MinTime, err = p.number("tier xmin"); err != nil {
		return t, err
	}
	if t.MaxTime, err = p.number("tier xmax"); err != nil {
		return t, err
	}
	n, err := p.count("item count")
	if err != nil {
		return t, err
	}

	switch t.Class {
	case ClassInterval:
		t.Intervals = make([]Interval, 0, n)
		for range n {
			var iv Interval
			if iv.MinTime, err = p.number("interval xmin"); err != nil {
				return t, err
			}
			if iv.MaxTime, err = p.number("interval xmax"); err != nil {
				return t, err
			}
			if iv.Mark, err = p.text("interval text"); err != nil {
				return t, err
			}
			t.Intervals = append(t.Intervals, iv)
		}
	case ClassPoint:
		t.Points = make([]Point, 0, n)
		for range n {
			var pt Point
			if pt.Time, err = p.number("point time"); err != nil {
				return t, err
			}
			if pt.Mark, err = p.text("point mark"); err != nil {
				return t, err
			}
			t.Points = append(t.Points, pt)
		}
	default:
		return t, fmt.Errorf("%w: unknown tier class %q", ErrSyntax, t.Class)
	}
	return t, nil
}
