// Package biometric implements speaker-identity embeddings, signature
// aggregation, and similarity-based verification.
package biometric

import (
	"math"

	"github.com/sirupsen/logrus"

	"voiceprint-server/pkg/analysis"
	"voiceprint-server/pkg/audio"
	"voiceprint-server/pkg/errors"
)

// EmbeddingDimension is the fixed length of a speaker embedding
const EmbeddingDimension = 256

// Embedding is a fixed-length, unit-normalized speaker-identity vector
type Embedding []float64

// Norm returns the L2 norm of the embedding
func (e Embedding) Norm() float64 {
	sum := 0.0
	for _, v := range e {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy of the embedding. A zero vector is
// returned unchanged.
func (e Embedding) Normalized() Embedding {
	norm := e.Norm()
	out := make(Embedding, len(e))
	if norm < 1e-8 {
		copy(out, e)
		return out
	}
	for i, v := range e {
		out[i] = v / norm
	}
	return out
}

// Extractor produces a speaker embedding plus a quality score from a
// canonical audio signal. Any implementation returning a fixed-dimension,
// unit-normalized vector that is stable within a speaker and separable
// across speakers satisfies the contract; a trained neural model can be
// substituted without touching aggregation or verification.
type Extractor interface {
	// Extract returns the embedding and a quality score in [0,100]
	Extract(signal audio.AudioSignal) (Embedding, float64, error)

	// Dimension returns the fixed embedding length
	Dimension() int
}

// StatisticalExtractor is the reference Extractor: it aggregates cepstral
// and chroma descriptors of the signal into a deterministic vector. It is a
// stand-in for a trained speaker model, not the long-term design.
type StatisticalExtractor struct {
	logger    *logrus.Entry
	dimension int
}

// NewStatisticalExtractor creates the reference descriptor-based extractor.
// A non-positive dimension selects the default of 256.
func NewStatisticalExtractor(dimension int, logger *logrus.Logger) *StatisticalExtractor {
	if dimension <= 0 {
		dimension = EmbeddingDimension
	}
	return &StatisticalExtractor{
		logger:    logger.WithField("component", "embedding_extractor"),
		dimension: dimension,
	}
}

// Dimension implements Extractor
func (se *StatisticalExtractor) Dimension() int {
	return se.dimension
}

// Extract implements Extractor. The descriptor vector concatenates 40
// mel-cepstral means, 40 mel-cepstral standard deviations, and 12 chroma
// means, zero-padded or truncated to the fixed dimension and L2-normalized.
func (se *StatisticalExtractor) Extract(signal audio.AudioSignal) (Embedding, float64, error) {
	if len(signal.Samples) == 0 || signal.SampleRate <= 0 {
		return nil, 0, errors.NewInvalidAudio("empty signal")
	}

	mfccMeans, mfccStds := analysis.CepstralDescriptors(signal, 40)
	chroma := analysis.ChromaMeans(signal)

	features := make([]float64, 0, len(mfccMeans)+len(mfccStds)+len(chroma))
	features = append(features, mfccMeans...)
	features = append(features, mfccStds...)
	features = append(features, chroma...)

	embedding := make(Embedding, se.dimension)
	copy(embedding, features)

	quality := QualityScore(signal)

	se.logger.WithFields(logrus.Fields{
		"duration": signal.Duration,
		"quality":  quality,
	}).Debug("Embedding extracted")

	return embedding.Normalized(), quality, nil
}

// QualityScore rates how reliable an embedding extracted from the signal
// will be, in [0,100]. Duration peaks for 2-4 second clips, clipping
// penalizes saturation near full scale, and RMS penalizes quiet signals.
func QualityScore(signal audio.AudioSignal) float64 {
	duration := signal.Duration

	var durationScore float64
	switch {
	case duration < 1:
		durationScore = duration * 50
	case duration <= 4:
		durationScore = 100
	default:
		durationScore = math.Max(50, 100-(duration-4)*5)
	}

	clipped := 0
	sumSquares := 0.0
	for _, s := range signal.Samples {
		if math.Abs(s) > 0.99 {
			clipped++
		}
		sumSquares += s * s
	}

	clippingScore := 100.0
	rmsScore := 0.0
	if len(signal.Samples) > 0 {
		clippingRatio := float64(clipped) / float64(len(signal.Samples))
		clippingScore = 100 - clippingRatio*200
		if clippingScore < 0 {
			clippingScore = 0
		}

		rms := math.Sqrt(sumSquares / float64(len(signal.Samples)))
		rmsScore = math.Min(100, rms*1000)
	}

	quality := 0.4*durationScore + 0.3*clippingScore + 0.3*rmsScore
	if quality < 0 {
		return 0
	}
	if quality > 100 {
		return 100
	}
	return quality
}
