// Package chunker splits rulebook pages into overlapping sections ready
// for embedding, applying the per-document page policies: ignored pages
// are dropped and designated setup pages are merged into one synthetic
// setup section.
package chunker

import (
	"strings"
	"unicode/utf8"

	"rulesbot/internal/models"
	"rulesbot/internal/pdfdoc"
)

const (
	// DefaultChunkSize is the target section length.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is carried between adjacent sections so a rule
	// statement spanning a boundary is never wholly orphaned.
	DefaultChunkOverlap = 150

	setupPreamble = "Start of game setup instructions:\n\n"
)

var separators = []string{"\n\n", "\n", " ", ""}

// LengthFunc measures text for chunk sizing. The default counts runes; a
// token counter may be substituted (see TokenLength).
type LengthFunc func(string) int

// Chunker splits page text into sections.
type Chunker struct {
	size    int
	overlap int
	length  LengthFunc
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLengthFunc replaces the rune-count length measure.
func WithLengthFunc(fn LengthFunc) Option {
	return func(c *Chunker) {
		if fn != nil {
			c.length = fn
		}
	}
}

// New creates a Chunker with the given section size and overlap. Values
// smaller than 1 (or an overlap not smaller than the size) fall back to
// the defaults.
func New(size, overlap int, opts ...Option) *Chunker {
	if size < 1 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 2
		}
	}

	c := &Chunker{
		size:    size,
		overlap: overlap,
		length:  func(s string) int { return utf8.RuneCountInString(s) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkPages turns page blocks into sections.
//
// ignorePages and setupPages are 1-indexed. Setup pages are exempt from the
// ignore list: a page listed in both is promoted to the setup section. The
// synthetic setup section, when present, is always the first section and is
// never split further.
func (c *Chunker) ChunkPages(pages []pdfdoc.Page, ignorePages, setupPages []int) []models.Section {
	setupSet := toZeroIndexed(setupPages)
	ignoreSet := toZeroIndexed(ignorePages)

	var content, setup []pdfdoc.Page
	for _, page := range pages {
		switch {
		case setupSet[page.Number]:
			setup = append(setup, page)
		case ignoreSet[page.Number]:
			// dropped
		default:
			content = append(content, page)
		}
	}

	var sections []models.Section
	if len(setup) > 0 {
		sections = append(sections, setupSection(setup))
	}
	for _, page := range content {
		for _, text := range c.Split(page.Text) {
			sections = append(sections, models.Section{
				Content: text,
				Page:    page.Number,
			})
		}
	}
	return sections
}

// setupSection concatenates the designated setup pages, in page order, into
// one section tagged for retrieval-time preferential inclusion. Page
// provenance comes from the first setup page.
func setupSection(pages []pdfdoc.Page) models.Section {
	var b strings.Builder
	b.WriteString(setupPreamble)
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(page.Text)
	}

	return models.Section{
		Content:   b.String(),
		Page:      pages[0].Number,
		SetupPage: true,
	}
}

// Split divides text into chunks of at most the configured size, carrying
// the configured overlap between adjacent chunks. Splitting prefers
// paragraph breaks, then line breaks, then spaces.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.length(text) <= c.size {
		return []string{text}
	}
	return c.split(text, separators)
}

func (c *Chunker) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		return c.hardCut(text)
	}

	var final []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			final = append(final, c.merge(pending, sep)...)
			pending = nil
		}
	}

	for _, part := range strings.Split(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if c.length(part) <= c.size {
			pending = append(pending, part)
			continue
		}
		// This piece alone exceeds the target; recurse with finer separators.
		flush()
		final = append(final, c.split(part, rest)...)
	}
	flush()
	return final
}

// merge joins small splits back into chunks near the target size. When a
// chunk fills up, splits are dropped from its front until the remainder fits
// the overlap budget; those retained splits seed the next chunk.
func (c *Chunker) merge(splits []string, sep string) []string {
	sepLen := c.length(sep)

	var chunks []string
	var current []string
	total := 0

	joinLen := func(extra int) int {
		l := total + extra
		if len(current) > 0 {
			l += sepLen
		}
		return l
	}

	for _, s := range splits {
		l := c.length(s)
		if len(current) > 0 && joinLen(l) > c.size {
			chunks = append(chunks, strings.Join(current, sep))
			for len(current) > 0 && (total > c.overlap || joinLen(l) > c.size) {
				total -= c.length(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, s)
		total += l
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}

// hardCut is the last resort for text with no usable separators; it slices
// by rune count regardless of the configured length measure.
func (c *Chunker) hardCut(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	if step < 1 {
		step = c.size
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func toZeroIndexed(pages []int) map[int]bool {
	set := make(map[int]bool, len(pages))
	for _, p := range pages {
		set[p-1] = true
	}
	return set
}
