// Package chunk splits page text into overlapping fixed-size windows.
// Everything here is pure computation with no I/O.
package chunk

import "fmt"

// Defaults for the fixed-window chunker, in characters.
const (
	DefaultSize    = 800
	DefaultOverlap = 120
)

// Options are the chunking parameters recorded with every index.
type Options struct {
	Size    int `json:"chunk_size" yaml:"size"`
	Overlap int `json:"chunk_overlap" yaml:"overlap"`
}

// DefaultOptions returns 800/120.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate rejects a non-positive size or a negative overlap.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.Size)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("chunk overlap must be non-negative, got %d", o.Overlap)
	}
	return nil
}

// EffectiveOverlap is the overlap actually applied: never more than half a window.
func (o Options) EffectiveOverlap() int {
	return min(max(o.Overlap, 0), o.Size/2)
}

// Window is one emitted chunk of a single text.
type Window struct {
	// Text is the trimmed window content.
	Text string
	// Start is the character offset of the untrimmed window.
	Start int
	// End is the exclusive character offset of the untrimmed window.
	End int
}

// Chunk is a window tied to the page it came from.
type Chunk struct {
	Text  string
	Page  int // 0-based page index within the document
	Start int
	End   int
}
