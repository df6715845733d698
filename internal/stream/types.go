package stream

import "fmt"

// Config contains stream processor configuration.
type Config struct {
	// ChunkSize is the nominal chunk size in bytes.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`

	// OverlapSize is the trailing overlap each chunk carries into the next
	// chunk's territory. It must be at least the longest expected match so
	// boundary matches are never missed.
	OverlapSize int `yaml:"overlap_size" mapstructure:"overlap_size"`

	// Workers bounds how many chunks are matched concurrently.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Threshold is the input size in bytes above which the chunked path is
	// used; smaller inputs go through a single pass.
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
}

// DefaultConfig returns the stream processor defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:   8192,
		OverlapSize: 256,
		Workers:     4,
		Threshold:   8192,
	}
}

// PatternSpec is one generic pattern the processor matches. The processor
// knows nothing about PII categories; callers map matches back by Source.
type PatternSpec struct {
	Source     string
	Confidence float64
}

// Match is one generic pattern hit with absolute offsets into the full text.
type Match struct {
	Source     string
	Text       string
	Start      int
	End        int
	Confidence float64
}

// TextChunk is a bounded slice of a larger text. Content covers
// [Offset, Offset+Size+Overlap) of the original; Size is the nominal region
// this chunk owns and Overlap the trailing bytes shared with the next chunk.
type TextChunk struct {
	Index   int
	Content string
	Offset  int
	Size    int
	Overlap int
}

// ProcessingError reports a chunk-level failure. Callers are expected to
// fall back to the single-pass path rather than fail the request.
type ProcessingError struct {
	Chunk int
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("chunk %d processing failed: %v", e.Chunk, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
