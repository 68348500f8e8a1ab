package chunker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/dshills/docsearch-mcp/internal/normalizer"
	"github.com/dshills/docsearch-mcp/pkg/logger"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// Default chunking configuration.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinChunkSize = 100
	DefaultMaxChunkSize = 2000
)

// sentenceTerminators are searched, in order of position, when snapping a
// proposed chunk boundary forward to the end of a sentence.
var sentenceTerminators = []string{". ", "! ", "? ", "\n"}

var headingPattern = regexp.MustCompile(`(?m)^#+[ \t]+(.+)$`)

// Config controls how documents are split into chunks.
type Config struct {
	ChunkSize       int  // Target chunk size in characters
	ChunkOverlap    int  // Characters shared between consecutive chunks
	MinChunkSize    int  // Boundary snapping never cuts below this length
	MaxChunkSize    int  // Upper bound sanity check for configuration
	SplitByHeadings bool // Prefer paragraph/heading sections over raw length
	DetectLanguage  bool // Stamp detected language onto chunk metadata
}

// DefaultConfig returns the standard chunking configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:       DefaultChunkSize,
		ChunkOverlap:    DefaultChunkOverlap,
		MinChunkSize:    DefaultMinChunkSize,
		MaxChunkSize:    DefaultMaxChunkSize,
		SplitByHeadings: true,
		DetectLanguage:  true,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunker: chunk size must be greater than zero, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunker: chunk overlap cannot be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunker: overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.ChunkSize {
		return fmt.Errorf("chunker: min chunk size %d must be in [0, %d]", c.MinChunkSize, c.ChunkSize)
	}
	if c.MaxChunkSize > 0 && c.MaxChunkSize < c.ChunkSize+c.ChunkOverlap {
		return fmt.Errorf("chunker: max chunk size %d is below chunk size + overlap %d",
			c.MaxChunkSize, c.ChunkSize+c.ChunkOverlap)
	}
	return nil
}

// Chunker splits normalized document text into bounded, overlapping chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker with a validated configuration.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// heading is a detected heading with its byte offset in the raw text.
type heading struct {
	text  string
	start int
}

// segment is an intermediate chunk of text with its offset in the source it
// was cut from.
type segment struct {
	text  string
	start int
}

// Chunk splits a document's text into ordered chunks. Empty or
// whitespace-only input yields an empty list. Metadata is copied onto every
// chunk; language detection failure is logged and leaves the language unset.
func (c *Chunker) Chunk(ctx context.Context, text, documentID string, metadata map[string]any) ([]*types.TextChunk, error) {
	return c.ChunkPage(ctx, text, documentID, 0, 0, metadata)
}

// ChunkPage splits one page (or other logical unit) of a document's text.
// pageNumber is 1-based, or 0 when paging does not apply. startIndex is the
// chunk index to assign to the first produced chunk, so that multi-page
// documents keep a single strictly increasing index sequence.
func (c *Chunker) ChunkPage(ctx context.Context, text, documentID string, pageNumber, startIndex int, metadata map[string]any) ([]*types.TextChunk, error) {
	if documentID == "" {
		return nil, types.ErrMissingDocumentID
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	language := ""
	if c.cfg.DetectLanguage {
		language = c.detectLanguage(ctx, text)
	}

	// Headings and paragraph boundaries are detected on the raw text, before
	// normalization collapses the newlines that mark them.
	headings := extractHeadings(text)

	var segments []segment
	if c.cfg.SplitByHeadings {
		segments = c.splitBySections(text)
	} else {
		segments = c.splitByLength(normalizer.Normalize(text), 0)
	}

	chunks := make([]*types.TextChunk, 0, len(segments))
	for _, seg := range segments {
		chunk := &types.TextChunk{
			DocumentID: documentID,
			ChunkIndex: startIndex + len(chunks),
			Text:       seg.text,
			PageNumber: pageNumber,
			Language:   language,
			Metadata:   cloneMetadata(metadata),
		}
		if c.cfg.SplitByHeadings {
			chunk.Section = sectionFor(headings, seg.start)
		}
		if language != "" {
			chunk.Metadata[types.MetadataKeyLanguage] = language
		}
		chunk.ComputeContentHash()
		chunk.ComputeTokenCount()
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// splitBySections segments raw text into blank-line separated sections. A
// section that fits within chunk size + overlap is emitted whole; oversized
// sections fall back to length-based splitting. Sections smaller than the
// minimum are kept: the minimum biases boundary snapping, not inclusion.
func (c *Chunker) splitBySections(raw string) []segment {
	limit := c.cfg.ChunkSize + c.cfg.ChunkOverlap
	var out []segment
	for _, sec := range splitParagraphSections(raw) {
		text := normalizer.Normalize(sec.text)
		if text == "" {
			continue
		}
		if len(text) <= limit {
			out = append(out, segment{text: text, start: sec.start})
			continue
		}
		for _, sub := range c.splitByLength(text, sec.start) {
			out = append(out, sub)
		}
	}
	return out
}

// splitByLength cuts text into segments of roughly ChunkSize characters with
// ChunkOverlap shared between neighbors. Proposed boundaries snap forward to
// the nearest sentence terminator within the overlap window, then back to the
// nearest word boundary, then fall through to the raw offset. offset shifts
// reported segment starts into the caller's coordinate space.
func (c *Chunker) splitByLength(text string, offset int) []segment {
	var out []segment
	start := 0
	for start < len(text) {
		end := start + c.cfg.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.snapBoundary(text, start, end)
		}

		if cut := strings.TrimSpace(text[start:end]); cut != "" {
			out = append(out, segment{text: cut, start: offset + start})
		}

		if end >= len(text) {
			break
		}
		next := end - c.cfg.ChunkOverlap
		if next <= start {
			// Degenerate configuration or pathological text: force forward
			// progress rather than looping.
			next = end
		}
		start = next
	}
	return out
}

// snapBoundary adjusts a proposed cut point to the nearest sentence
// terminator after it (bounded by the overlap window), falling back to the
// last word boundary before it. Both snaps are rejected when they would
// produce a chunk shorter than MinChunkSize.
func (c *Chunker) snapBoundary(text string, start, proposed int) int {
	limit := start + c.cfg.ChunkSize + c.cfg.ChunkOverlap
	if limit > len(text) {
		limit = len(text)
	}
	window := text[proposed:limit]
	best := -1
	for _, term := range sentenceTerminators {
		if pos := strings.Index(window, term); pos >= 0 {
			cut := proposed + pos + len(term)
			if best == -1 || cut < best {
				best = cut
			}
		}
	}
	if best > start+c.cfg.MinChunkSize {
		return best
	}
	if wb := strings.LastIndex(text[start:proposed], " "); wb > c.cfg.MinChunkSize {
		return start + wb
	}
	return proposed
}

// detectLanguage runs language detection over the full text unit. Detection
// that fails or is unreliable leaves the language unset.
func (c *Chunker) detectLanguage(ctx context.Context, text string) string {
	info := whatlanggo.Detect(text)
	if info.Lang == -1 || !info.IsReliable() {
		logger.FromContext(ctx).Debug("language detection inconclusive",
			"confidence", info.Confidence)
		return ""
	}
	return info.Lang.Iso6391()
}

// paragraphSection is a blank-line separated block with its raw start offset.
type paragraphSection struct {
	text  string
	start int
}

var sectionBreak = regexp.MustCompile(`\n[ \t\r]*\n+`)

// splitParagraphSections splits raw text on blank lines, tracking the byte
// offset of each block in the raw text.
func splitParagraphSections(raw string) []paragraphSection {
	breaks := sectionBreak.FindAllStringIndex(raw, -1)
	var out []paragraphSection
	prev := 0
	for _, b := range breaks {
		out = append(out, paragraphSection{text: raw[prev:b[0]], start: prev})
		prev = b[1]
	}
	out = append(out, paragraphSection{text: raw[prev:], start: prev})
	return out
}

// extractHeadings finds heading lines and their offsets in the raw text.
func extractHeadings(raw string) []heading {
	matches := headingPattern.FindAllStringSubmatchIndex(raw, -1)
	out := make([]heading, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(raw[m[2]:m[3]])
		if text == "" {
			continue
		}
		out = append(out, heading{text: text, start: m[0]})
	}
	return out
}

// sectionFor returns the nearest heading that starts at or before the given
// offset, or empty when no heading precedes it.
func sectionFor(headings []heading, offset int) string {
	for i := len(headings) - 1; i >= 0; i-- {
		if headings[i].start <= offset {
			return headings[i].text
		}
	}
	return ""
}

func cloneMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
