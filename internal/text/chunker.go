// Package text splits parsed document text into ordered segments. Splitting is
// deterministic: the same input under the same chunker name+version always
// yields the same segments in the same order, which is what makes
// content-addressed chunk ids reproducible.
package text

import (
	"regexp"
	"strings"
)

const (
	// ChunkerName and ChunkerVersion identify this splitting strategy in chunk
	// ids. Bump the version whenever the algorithm changes observable output;
	// old and new chunk id spaces then coexist without collision.
	ChunkerName    = "structural"
	ChunkerVersion = "v1"
)

type Segment struct {
	Ordinal int
	Text    string
	Tokens  int
}

// EstimateTokens approximates model-input tokens at ~4 chars per token.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n < 1 && len(s) > 0 {
		n = 1
	}
	return n
}

type Chunker struct {
	MaxTokens int
	Overlap   int
}

func NewChunker(maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{MaxTokens: maxTokens, Overlap: overlap}
}

var headerRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

// Split breaks text into ordered segments, respecting structure:
// headers, then paragraphs, then lines, then words as a last resort.
func (c *Chunker) Split(text string) []Segment {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	maxChars := c.MaxTokens * 4

	var pieces []string
	for _, section := range splitByHeaders(text) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if len(section) <= maxChars {
			pieces = append(pieces, section)
			continue
		}
		pieces = append(pieces, splitLong(section, maxChars)...)
	}

	segments := make([]Segment, 0, len(pieces))
	for i, p := range pieces {
		segments = append(segments, Segment{Ordinal: i, Text: p, Tokens: EstimateTokens(p)})
	}
	return segments
}

func splitByHeaders(text string) []string {
	indices := headerRe.FindAllStringIndex(text, -1)
	var sections []string
	last := 0
	for _, loc := range indices {
		if loc[0] > last {
			sections = append(sections, text[last:loc[0]])
		}
		last = loc[0]
	}
	if last < len(text) {
		sections = append(sections, text[last:])
	}
	return sections
}

// splitLong packs paragraphs greedily into maxChars pieces, falling back to
// lines and then words for oversized runs.
func splitLong(section string, maxChars int) []string {
	var out []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, para := range strings.Split(section, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len()+len(para)+2 <= maxChars {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}
		flush()
		if len(para) <= maxChars {
			cur.WriteString(para)
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			if cur.Len()+len(line)+1 > maxChars {
				flush()
			}
			if len(line) > maxChars {
				for _, word := range strings.Fields(line) {
					if cur.Len()+len(word)+1 > maxChars {
						flush()
					}
					if cur.Len() > 0 {
						cur.WriteString(" ")
					}
					cur.WriteString(word)
				}
				continue
			}
			if cur.Len() > 0 {
				cur.WriteString("\n")
			}
			cur.WriteString(line)
		}
	}
	flush()
	return out
}
