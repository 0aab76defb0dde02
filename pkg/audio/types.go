package audio

// Category identifies the vocal mode of a recording
type Category string

const (
	// CategorySpoken marks conversational or read speech
	CategorySpoken Category = "spoken"

	// CategorySung marks singing, optionally with accompaniment
	CategorySung Category = "sung"
)

// AudioSignal is a canonical mono signal produced by the Preprocessor.
// Treat it as immutable once returned; downstream extractors only read it.
type AudioSignal struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	Duration   float64   `json:"duration"`
}

// VoicedSegment marks an energy-above-threshold span within an AudioSignal.
// Segments are non-overlapping and time-ordered.
type VoicedSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// VocalIsolator separates the vocal line from accompaniment in sung audio.
// The default implementation is a pass-through; a source-separation model
// can be plugged in without touching the preprocessor.
type VocalIsolator interface {
	// Isolate returns the vocal-only samples for the given signal
	Isolate(samples []float64, sampleRate int) []float64
}

// PassthroughIsolator returns the input unchanged
type PassthroughIsolator struct{}

// Isolate implements VocalIsolator
func (PassthroughIsolator) Isolate(samples []float64, sampleRate int) []float64 {
	return samples
}
