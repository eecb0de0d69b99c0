package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxSize = 2000
	DefaultOverlap = 200
)

var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

type Chunk struct {
	Text  string
	Index int
}

type Option func(*Chunker)

func WithMaxSize(n int) Option {
	return func(c *Chunker) {
		c.maxSize = n
	}
}

func WithOverlap(n int) Option {
	return func(c *Chunker) {
		c.overlap = n
	}
}

func WithSeparators(seps []string) Option {
	return func(c *Chunker) {
		c.separators = append([]string(nil), seps...)
	}
}

// Chunker is a recursive character splitter. Sizes are counted in runes.
// Every emitted chunk holds at most maxSize runes and, except for the
// first one, starts with the last overlap runes of its predecessor.
type Chunker struct {
	maxSize    int
	overlap    int
	separators []string
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxSize:    DefaultMaxSize,
		overlap:    DefaultOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxSize
	}
	if c.overlap < 0 {
		c.overlap = 0
	}
	if c.overlap >= c.maxSize {
		c.overlap = c.maxSize / 4
	}
	if len(c.separators) == 0 {
		c.separators = DefaultSeparators
	}
	return c
}

// Split is a shorthand for New(...).Split(text).
func Split(text string, maxSize, overlap int, separators []string) []Chunk {
	return New(WithMaxSize(maxSize), WithOverlap(overlap), WithSeparators(separators)).Split(text)
}

func (c *Chunker) MaxSize() int { return c.maxSize }

func (c *Chunker) Overlap() int { return c.overlap }

func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	work := c.maxSize - c.overlap
	leaves := splitRecursive(text, c.separators, work)
	bodies := c.merge(leaves, work)

	chunks := make([]Chunk, 0, len(bodies))
	prev := ""
	for i, body := range bodies {
		chunkText := body
		if i > 0 && c.overlap > 0 {
			chunkText = tail(prev, c.overlap) + body
		}
		chunks = append(chunks, Chunk{Text: chunkText, Index: i})
		prev = chunkText
	}
	return chunks
}

// merge packs leaves greedily. The first body may fill maxSize, later
// bodies leave room for the overlap prefix.
func (c *Chunker) merge(leaves []string, work int) []string {
	var (
		bodies []string
		cur    strings.Builder
		curLen int
	)
	limit := c.maxSize
	for _, leaf := range leaves {
		n := utf8.RuneCountInString(leaf)
		if curLen > 0 && curLen+n > limit {
			bodies = append(bodies, cur.String())
			cur.Reset()
			curLen = 0
			limit = work
		}
		cur.WriteString(leaf)
		curLen += n
	}
	if curLen > 0 {
		bodies = append(bodies, cur.String())
	}
	return bodies
}

// splitRecursive returns leaves no longer than limit whose concatenation
// is exactly text. Separators stay attached to the fragment they end.
func splitRecursive(text string, seps []string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	for i, sep := range seps {
		if sep == "" {
			return hardSplit(text, limit)
		}
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, frag := range strings.SplitAfter(text, sep) {
			if frag == "" {
				continue
			}
			if utf8.RuneCountInString(frag) <= limit {
				out = append(out, frag)
				continue
			}
			out = append(out, splitRecursive(frag, seps[i+1:], limit)...)
		}
		return out
	}
	return hardSplit(text, limit)
}

func hardSplit(text string, limit int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
