package biometric

import (
	"math"

	"github.com/sirupsen/logrus"
)

// SimilarityMetric selects the embedding comparison function
type SimilarityMetric string

const (
	// MetricCosine rescales cosine similarity onto [0,100]
	MetricCosine SimilarityMetric = "cosine"

	// MetricEuclidean converts L2 distance between unit vectors onto [0,100]
	MetricEuclidean SimilarityMetric = "euclidean"
)

// AntiSpoofing reports the spoofing checks attached to a verification.
// Replay and AI-generation detection are declared but not implemented:
// DetectionImplemented is false and both flags always report negative, so
// callers must not treat them as real protection yet.
type AntiSpoofing struct {
	ReplayDetected       bool `json:"replay_detected"`
	AIGenerated          bool `json:"ai_generated"`
	LivenessVerified     bool `json:"liveness_verified"`
	DetectionImplemented bool `json:"detection_implemented"`
}

// VerificationResult is the outcome of comparing a probe embedding against
// one or many enrolled signatures
type VerificationResult struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`

	MatchedSignature *VoiceSignature `json:"matched_signature,omitempty"`

	AntiSpoofing AntiSpoofing `json:"anti_spoofing"`
}

// VerificationEngine decides identity matches from embedding similarity.
// Each call is stateless given its inputs.
type VerificationEngine struct {
	logger *logrus.Entry

	matchThreshold    float64
	livenessThreshold float64
	metric            SimilarityMetric
}

// NewVerificationEngine creates a verification engine. The match threshold
// is on the [0,100] similarity scale.
func NewVerificationEngine(matchThreshold, livenessThreshold float64, logger *logrus.Logger) *VerificationEngine {
	return &VerificationEngine{
		logger:            logger.WithField("component", "verification_engine"),
		matchThreshold:    matchThreshold,
		livenessThreshold: livenessThreshold,
		metric:            MetricCosine,
	}
}

// WithMetric returns a copy of the engine using the given similarity metric
func (ve *VerificationEngine) WithMetric(metric SimilarityMetric) *VerificationEngine {
	clone := *ve
	clone.metric = metric
	return &clone
}

// Verify compares the probe against the candidate signatures and selects
// the best match. Passing a single-element slice performs 1:1
// verification; an empty candidate set yields a non-match result, not an
// error. probeQuality feeds the liveness check.
func (ve *VerificationEngine) Verify(probe Embedding, candidates []*VoiceSignature, probeQuality float64) VerificationResult {
	result := VerificationResult{
		AntiSpoofing: AntiSpoofing{
			LivenessVerified: probeQuality > ve.livenessThreshold,
		},
	}

	var best *VoiceSignature
	bestSimilarity := 0.0

	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		similarity := ve.Similarity(probe, candidate.Centroid)
		if best == nil || similarity > bestSimilarity {
			best = candidate
			bestSimilarity = similarity
		}
	}

	if best == nil {
		ve.logger.Debug("Verification against empty candidate set")
		return result
	}

	result.Confidence = bestSimilarity
	if bestSimilarity >= ve.matchThreshold {
		result.Match = true
		result.MatchedSignature = best
	}

	ve.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"confidence": bestSimilarity,
		"match":      result.Match,
	}).Debug("Verification decided")

	return result
}

// Similarity compares two embeddings on the engine's metric, in [0,100]
func (ve *VerificationEngine) Similarity(a, b Embedding) float64 {
	if ve.metric == MetricEuclidean {
		return EuclideanSimilarity(a, b)
	}
	return CosineSimilarity(a, b)
}

// CosineSimilarity computes cosine similarity rescaled onto [0,100] via
// (cos+1)*50. Zero-norm or mismatched vectors yield 0.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	dot := 0.0
	normA := 0.0
	normB := 0.0
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) * 50
}

// EuclideanSimilarity converts the L2 distance between embeddings onto
// [0,100]. Unit-normalized vectors are at most 2 apart.
func EuclideanSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	similarity := 100 - math.Sqrt(sum)*50
	if similarity < 0 {
		return 0
	}
	return similarity
}
