package analysis

// Formants holds the first four vocal-tract resonances in Hz
type Formants struct {
	F1 float64 `json:"f1"`
	F2 float64 `json:"f2"`
	F3 float64 `json:"f3"`
	F4 float64 `json:"f4"`
}

// FeatureVector is the fixed acoustic feature set computed once per
// AudioSignal. Every field carries a documented fallback default that is
// substituted when the feature cannot be computed, so a full vector is
// always produced.
type FeatureVector struct {
	// Spectral shape
	SpectralCentroid float64 `json:"spectral_centroid"` // Hz
	SpectralRolloff  float64 `json:"spectral_rolloff"`  // Hz, 85% cumulative energy

	// Harmonic structure
	HNR  float64 `json:"hnr"`   // Harmonics-to-noise ratio, dB
	CPP  float64 `json:"cpp"`   // Cepstral peak prominence, dB
	H1H2 float64 `json:"h1_h2"` // First minus second harmonic amplitude, dB

	// Pitch
	F0Mean  float64    `json:"f0_mean"`  // Hz
	F0Range [2]float64 `json:"f0_range"` // [min, max] Hz

	Formants Formants `json:"formants"`

	// 13 mel-cepstral coefficient means
	MFCC []float64 `json:"mfccs"`

	// Perturbation measures, percent
	Jitter  float64 `json:"jitter"`
	Shimmer float64 `json:"shimmer"`
}

// Fallback defaults, substituted per feature family when computation is not
// possible (e.g. no voiced frames). Values follow typical adult voice ranges.
const (
	DefaultSpectralCentroid = 2450.0
	DefaultSpectralRolloff  = 4500.0
	DefaultHNR              = 18.5
	DefaultCPP              = 12.3
	DefaultH1H2             = 4.2
	DefaultF0Mean           = 150.0
	DefaultF0Min            = 100.0
	DefaultF0Max            = 300.0
	DefaultJitter           = 0.5
	DefaultShimmer          = 3.2

	DefaultF1 = 520.0
	DefaultF2 = 1680.0
	DefaultF3 = 2580.0
	DefaultF4 = 3450.0

	// MFCCCount is the number of cepstral coefficient means in a vector
	MFCCCount = 13
)

// DefaultFormants returns the formant fallback set
func DefaultFormants() Formants {
	return Formants{F1: DefaultF1, F2: DefaultF2, F3: DefaultF3, F4: DefaultF4}
}
