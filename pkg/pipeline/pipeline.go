// Package pipeline wires the preprocessing, feature extraction, scoring,
// and biometric stages together. Every collaborator is injected at
// construction; the pipeline holds no global state, and each invocation is
// independent apart from reads and writes against the signature store.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"voiceprint-server/pkg/analysis"
	"voiceprint-server/pkg/audio"
	"voiceprint-server/pkg/biometric"
	"voiceprint-server/pkg/config"
	"voiceprint-server/pkg/database"
	"voiceprint-server/pkg/errors"
	"voiceprint-server/pkg/metrics"
	"voiceprint-server/pkg/scoring"
	"voiceprint-server/pkg/util"
)

// AnalysisResult is the full vocal-technique output for one recording
type AnalysisResult struct {
	Category       audio.Category         `json:"category"`
	Duration       float64                `json:"duration"`
	VoicedSegments []audio.VoicedSegment  `json:"voiced_segments"`
	Features       analysis.FeatureVector `json:"features"`
	Scores         scoring.ScoreSet       `json:"scores"`
	AnalyzedAt     time.Time              `json:"analyzed_at"`
}

// Pipeline is the façade over the analysis and verification stages
type Pipeline struct {
	logger *logrus.Entry
	cfg    *config.Config

	preprocessor *audio.Preprocessor
	features     *analysis.FeatureExtractor
	scorer       *scoring.Engine
	embedder     biometric.Extractor
	verifier     *biometric.VerificationEngine

	repo database.SignatureRepository
	pool *util.WorkerPool
}

// New builds a pipeline from its collaborators. A nil embedder selects the
// reference statistical extractor; a nil repository is rejected at the
// first store-touching call, not here, so analysis-only use stays possible.
func New(cfg *config.Config, repo database.SignatureRepository, embedder biometric.Extractor, logger *logrus.Logger) *Pipeline {
	if embedder == nil {
		embedder = biometric.NewStatisticalExtractor(cfg.Embedding.Dimension, logger)
	}

	return &Pipeline{
		logger:       logger.WithField("component", "pipeline"),
		cfg:          cfg,
		preprocessor: audio.NewPreprocessor(cfg.Audio, nil, logger),
		features:     analysis.NewFeatureExtractor(cfg.Pitch, logger),
		scorer:       scoring.NewEngine(scoring.DefaultConfig()),
		embedder:     embedder,
		verifier: biometric.NewVerificationEngine(
			cfg.Verification.MatchThreshold,
			cfg.Verification.LivenessQualityThreshold,
			logger,
		),
		repo: repo,
		pool: util.NewWorkerPool(0, logger),
	}
}

// Close releases pipeline resources
func (p *Pipeline) Close() {
	p.pool.Stop()
}

// Analyze runs preprocess → extract features → score for one recording
func (p *Pipeline) Analyze(ctx context.Context, raw []byte, category audio.Category) (*AnalysisResult, error) {
	signal, segments, err := p.preprocess(raw, category)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues("preprocess").Inc()
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "analysis canceled")
	}

	featureStart := time.Now()
	features := p.features.Extract(signal, category)
	metrics.ObserveStage("features", featureStart)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "analysis canceled")
	}

	scoreStart := time.Now()
	scores := p.scorer.Score(features, category)
	metrics.ObserveStage("score", scoreStart)

	metrics.AnalysesTotal.WithLabelValues(string(category)).Inc()

	return &AnalysisResult{
		Category:       category,
		Duration:       signal.Duration,
		VoicedSegments: segments,
		Features:       features,
		Scores:         scores,
		AnalyzedAt:     time.Now().UTC(),
	}, nil
}

// Enroll extracts embeddings from every sample concurrently, aggregates
// them into a centroid signature, and persists it. Fewer samples than the
// configured minimum fail with ErrInsufficientSamples before any work runs.
func (p *Pipeline) Enroll(ctx context.Context, name string, samples [][]byte, category audio.Category, method biometric.AggregationMethod) (*biometric.VoiceSignature, error) {
	required := p.cfg.Embedding.MinEnrollmentSamples
	if len(samples) < required {
		metrics.EnrollmentsTotal.WithLabelValues("rejected").Inc()
		return nil, errors.NewInsufficientSamples(len(samples), required)
	}

	embeddings := make([]biometric.Embedding, len(samples))
	qualities := make([]float64, len(samples))
	sampleErrs := make([]error, len(samples))

	var wg sync.WaitGroup
	for i := range samples {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			embeddings[i], qualities[i], sampleErrs[i] = p.extractEmbedding(samples[i], category)
		}
		if !p.pool.Submit(task) {
			// Pool is shutting down, extract on the caller
			task()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "enrollment canceled")
	}

	for i, err := range sampleErrs {
		if err != nil {
			metrics.EnrollmentsTotal.WithLabelValues("error").Inc()
			return nil, errors.Wrap(err, "enrollment sample failed", map[string]interface{}{
				"sample_index": i,
			})
		}
		metrics.EmbeddingQuality.Observe(qualities[i])
	}

	signature, err := biometric.NewSignature("", name, embeddings, qualities, method, category == audio.CategorySung)
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	id, err := p.repo.Save(signature)
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	signature.ID = id

	metrics.EnrollmentsTotal.WithLabelValues("enrolled").Inc()
	p.refreshSignatureGauge()

	p.logger.WithFields(logrus.Fields{
		"signature_id": id,
		"name":         name,
		"samples":      len(samples),
		"quality":      signature.AverageQuality,
	}).Info("Speaker enrolled")

	return signature, nil
}

// Verify extracts a probe embedding from the recording and compares it
// against one signature (1:1, when signatureID is set) or all active
// signatures (1:N). An empty candidate set yields a non-match result.
func (p *Pipeline) Verify(ctx context.Context, raw []byte, signatureID string) (biometric.VerificationResult, error) {
	probe, quality, err := p.extractEmbedding(raw, audio.CategorySpoken)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return biometric.VerificationResult{}, err
	}

	if err := ctx.Err(); err != nil {
		return biometric.VerificationResult{}, errors.Wrap(err, "verification canceled")
	}

	var candidates []*biometric.VoiceSignature
	if signatureID != "" {
		signature, err := p.repo.Get(signatureID)
		if err != nil {
			metrics.VerificationsTotal.WithLabelValues("error").Inc()
			return biometric.VerificationResult{}, err
		}
		candidates = []*biometric.VoiceSignature{signature}
	} else {
		candidates, err = p.repo.ListActive()
		if err != nil {
			metrics.VerificationsTotal.WithLabelValues("error").Inc()
			return biometric.VerificationResult{}, err
		}
	}

	result := p.verifier.Verify(probe, candidates, quality)

	record := &database.VerificationRecord{
		Match:      result.Match,
		Confidence: result.Confidence,
	}
	if result.MatchedSignature != nil {
		record.SignatureID = result.MatchedSignature.ID
	}
	if err := p.repo.RecordVerification(record); err != nil {
		p.logger.WithError(err).Warn("Failed to record verification")
	}

	outcome := "no_match"
	if result.Match {
		outcome = "match"
	}
	metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	metrics.VerificationScore.Observe(result.Confidence)

	return result, nil
}

// ListSignatures returns all active signatures from the store
func (p *Pipeline) ListSignatures() ([]*biometric.VoiceSignature, error) {
	return p.repo.ListActive()
}

// DeleteSignature removes an enrolled signature
func (p *Pipeline) DeleteSignature(id string) error {
	if err := p.repo.Delete(id); err != nil {
		return err
	}
	p.refreshSignatureGauge()
	return nil
}

func (p *Pipeline) preprocess(raw []byte, category audio.Category) (audio.AudioSignal, []audio.VoicedSegment, error) {
	start := time.Now()
	signal, segments, err := p.preprocessor.Process(raw, category)
	metrics.ObserveStage("preprocess", start)
	return signal, segments, err
}

func (p *Pipeline) extractEmbedding(raw []byte, category audio.Category) (biometric.Embedding, float64, error) {
	signal, _, err := p.preprocess(raw, category)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	embedding, quality, err := p.embedder.Extract(signal)
	metrics.ObserveStage("embedding", start)
	return embedding, quality, err
}

func (p *Pipeline) refreshSignatureGauge() {
	signatures, err := p.repo.ListActive()
	if err != nil {
		return
	}
	metrics.SignaturesEnrolled.Set(float64(len(signatures)))
}
