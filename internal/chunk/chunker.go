package chunk

import "strings"

// Split cuts text into windows of size characters that overlap by
// min(overlap, size/2). Windows that are blank after trimming are
// dropped. Start offsets are strictly increasing for any size > 0.
func Split(text string, size, overlap int) []Window {
	if size <= 0 || text == "" {
		return nil
	}
	step := Options{Size: size, Overlap: overlap}.EffectiveOverlap()

	runes := []rune(text)
	n := len(runes)

	var windows []Window
	start := 0
	for start < n {
		end := min(start+size, n)

		if trimmed := strings.TrimSpace(string(runes[start:end])); trimmed != "" {
			windows = append(windows, Window{Text: trimmed, Start: start, End: end})
		}

		if end >= n {
			break
		}

		next := end - step
		if next <= start {
			next = end
		}
		start = next
	}

	return windows
}

// Chunker applies Split to every page of a document.
type Chunker struct {
	opts Options
}

// New creates a Chunker. Invalid options are rejected.
func New(opts Options) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{opts: opts}, nil
}

// Options returns the chunker's parameters.
func (c *Chunker) Options() Options {
	return c.opts
}

// ChunkPages chunks each page in order, tagging chunks with the page index.
func (c *Chunker) ChunkPages(pages []string) []Chunk {
	var out []Chunk
	for page, text := range pages {
		for _, w := range Split(text, c.opts.Size, c.opts.Overlap) {
			out = append(out, Chunk{Text: w.Text, Page: page, Start: w.Start, End: w.End})
		}
	}
	return out
}
