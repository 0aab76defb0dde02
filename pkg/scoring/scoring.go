// Package scoring maps acoustic feature vectors onto bounded perceptual
// scores. Scoring is a pure function of its inputs: identical features and
// configuration always produce an identical ScoreSet.
package scoring

import (
	"voiceprint-server/pkg/analysis"
	"voiceprint-server/pkg/audio"
)

// TimbreScores describe spectral character, each value in [0,100]
type TimbreScores struct {
	Brightness  float64 `json:"brightness"`
	Breathiness float64 `json:"breathiness"`
	Warmth      float64 `json:"warmth"`
	Roughness   float64 `json:"roughness"`
}

// WeightScores describe source strength: light (0) to heavy (100) and
// breathy (0) to pressed (100)
type WeightScores struct {
	Weight  float64 `json:"weight"`
	Pressed float64 `json:"pressed"`
}

// PlacementScores describe resonance placement
type PlacementScores struct {
	Forwardness float64 `json:"forwardness"`
	RingIndex   float64 `json:"ring_index"`
	Nasality    float64 `json:"nasality"`
}

// SweetSpotScore is the composite perceptual quality index
type SweetSpotScore struct {
	Clarity          float64 `json:"clarity"`
	Warmth           float64 `json:"warmth"`
	Presence         float64 `json:"presence"`
	Smoothness       float64 `json:"smoothness"`
	HarshnessPenalty float64 `json:"harshness_penalty"`
	Total            float64 `json:"total"`
}

// ScoreSet is the full perceptual scoring output for one recording
type ScoreSet struct {
	Timbre    TimbreScores    `json:"timbre"`
	Weight    WeightScores    `json:"weight"`
	Placement PlacementScores `json:"placement"`
	SweetSpot SweetSpotScore  `json:"sweet_spot"`
}

// Range is a [lo, hi] normalization reference in feature units
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Config holds every reference range and weight the scoring formulas use.
// The values are perceptual calibration constants, kept externally tunable.
type Config struct {
	CentroidRange     Range `json:"centroid_range"`
	HNRRange          Range `json:"hnr_range"`
	ClarityHNRRange   Range `json:"clarity_hnr_range"`
	CPPRange          Range `json:"cpp_range"`
	H1H2Range         Range `json:"h1_h2_range"`
	F2F1RatioRange    Range `json:"f2_f1_ratio_range"`
	ForwardnessRange  Range `json:"forwardness_centroid_range"`
	RingDistanceRange Range `json:"ring_distance_range"`
	NasalitySpacing   Range `json:"nasality_spacing_range"`

	SingerFormantHz float64 `json:"singer_formant_hz"`

	JitterWeight  float64 `json:"jitter_weight"`
	ShimmerWeight float64 `json:"shimmer_weight"`

	SweetSpotWeights struct {
		Clarity    float64 `json:"clarity"`
		Warmth     float64 `json:"warmth"`
		Presence   float64 `json:"presence"`
		Smoothness float64 `json:"smoothness"`
		Harshness  float64 `json:"harshness"`
	} `json:"sweet_spot_weights"`
}

// DefaultConfig returns the documented reference ranges and weights
func DefaultConfig() Config {
	cfg := Config{
		CentroidRange:     Range{1000, 4000},
		HNRRange:          Range{5, 30},
		ClarityHNRRange:   Range{10, 25},
		CPPRange:          Range{5, 20},
		H1H2Range:         Range{-5, 15},
		F2F1RatioRange:    Range{2.0, 4.0},
		ForwardnessRange:  Range{1500, 3500},
		RingDistanceRange: Range{0, 1500},
		NasalitySpacing:   Range{500, 1500},
		SingerFormantHz:   3000,
		JitterWeight:      10,
		ShimmerWeight:     3,
	}
	cfg.SweetSpotWeights.Clarity = 0.25
	cfg.SweetSpotWeights.Warmth = 0.20
	cfg.SweetSpotWeights.Presence = 0.20
	cfg.SweetSpotWeights.Smoothness = 0.15
	cfg.SweetSpotWeights.Harshness = 0.20
	return cfg
}

// Engine computes perceptual scores from feature vectors
type Engine struct {
	cfg Config
}

// NewEngine creates a scoring engine with the given configuration
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Score derives the full ScoreSet from a feature vector. The category is
// part of the scoring contract; the current formulas apply identically to
// spoken and sung recordings.
func (e *Engine) Score(fv analysis.FeatureVector, category audio.Category) ScoreSet {
	timbre := e.timbreScores(fv)
	weight := e.weightScores(fv)
	placement := e.placementScores(fv)
	sweetSpot := e.sweetSpot(timbre, placement, fv)

	return ScoreSet{
		Timbre:    timbre,
		Weight:    weight,
		Placement: placement,
		SweetSpot: sweetSpot,
	}
}

func (e *Engine) timbreScores(fv analysis.FeatureVector) TimbreScores {
	brightness := Normalize(fv.SpectralCentroid, e.cfg.CentroidRange.Lo, e.cfg.CentroidRange.Hi)
	breathiness := 100 - Normalize(fv.HNR, e.cfg.HNRRange.Lo, e.cfg.HNRRange.Hi)

	// Lower brightness correlates with warmth
	warmth := clamp(100-brightness*0.6+30, 0, 100)

	roughness := clamp(fv.Jitter*e.cfg.JitterWeight+fv.Shimmer*e.cfg.ShimmerWeight, 0, 100)

	return TimbreScores{
		Brightness:  brightness,
		Breathiness: breathiness,
		Warmth:      warmth,
		Roughness:   roughness,
	}
}

func (e *Engine) weightScores(fv analysis.FeatureVector) WeightScores {
	cppScore := Normalize(fv.CPP, e.cfg.CPPRange.Lo, e.cfg.CPPRange.Hi)
	h1h2Score := 100 - Normalize(fv.H1H2, e.cfg.H1H2Range.Lo, e.cfg.H1H2Range.Hi)

	return WeightScores{
		Weight:  clamp(cppScore*0.6+h1h2Score*0.4, 0, 100),
		Pressed: clamp(h1h2Score, 0, 100),
	}
}

func (e *Engine) placementScores(fv analysis.FeatureVector) PlacementScores {
	f1 := fv.Formants.F1
	f2 := fv.Formants.F2
	f3 := fv.Formants.F3

	ratio := 3.0
	if f1 > 0 {
		ratio = f2 / f1
	}

	forwardness := Normalize(ratio, e.cfg.F2F1RatioRange.Lo, e.cfg.F2F1RatioRange.Hi)*0.5 +
		Normalize(fv.SpectralCentroid, e.cfg.ForwardnessRange.Lo, e.cfg.ForwardnessRange.Hi)*0.5

	ringDistance := f3 - e.cfg.SingerFormantHz
	if ringDistance < 0 {
		ringDistance = -ringDistance
	}
	ringIndex := 100 - Normalize(ringDistance, e.cfg.RingDistanceRange.Lo, e.cfg.RingDistanceRange.Hi)

	nasality := 100 - Normalize(f2-f1, e.cfg.NasalitySpacing.Lo, e.cfg.NasalitySpacing.Hi)

	return PlacementScores{
		Forwardness: clamp(forwardness, 0, 100),
		RingIndex:   clamp(ringIndex, 0, 100),
		Nasality:    clamp(nasality, 0, 100),
	}
}

func (e *Engine) sweetSpot(timbre TimbreScores, placement PlacementScores, fv analysis.FeatureVector) SweetSpotScore {
	clarity := clamp(
		Normalize(fv.HNR, e.cfg.ClarityHNRRange.Lo, e.cfg.ClarityHNRRange.Hi)*0.7+
			(100-timbre.Breathiness)*0.3,
		0, 100)

	presence := placement.Forwardness*0.6 + placement.RingIndex*0.4
	smoothness := 100 - timbre.Roughness

	harshness := 0.0
	if timbre.Brightness > 80 {
		harshness += (timbre.Brightness - 80) * 0.5
	}
	harshness = clamp(harshness+timbre.Roughness*0.3, 0, 100)

	w := e.cfg.SweetSpotWeights
	total := clamp(
		w.Clarity*clarity+
			w.Warmth*timbre.Warmth+
			w.Presence*presence+
			w.Smoothness*smoothness+
			w.Harshness*(100-harshness),
		0, 100)

	return SweetSpotScore{
		Clarity:          clarity,
		Warmth:           timbre.Warmth,
		Presence:         presence,
		Smoothness:       smoothness,
		HarshnessPenalty: harshness,
		Total:            total,
	}
}

// Normalize maps v from [lo, hi] onto [0, 100], clamping outside values.
// A degenerate range returns the midpoint.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 50
	}
	return clamp((v-lo)/(hi-lo)*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
