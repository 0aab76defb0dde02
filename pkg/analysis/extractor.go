package analysis

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"voiceprint-server/pkg/audio"
	"voiceprint-server/pkg/config"
	"voiceprint-server/pkg/errors"
)

const (
	analysisFrameSize = 1024
	analysisHopSize   = 256
	melBankCount      = 26
	lpcOrder          = 12
	envelopeBins      = 512

	// Minimum normalized autocorrelation peak to accept a pitch estimate
	pitchConfidenceFloor = 0.25

	// Frame-level voicing gates
	voicedRMSFloor = 0.01
	voicedZCRCeil  = 0.15
)

// FeatureExtractor computes a FeatureVector from a canonical AudioSignal.
// Individual sub-features that cannot be computed are absorbed into their
// documented defaults; extraction never aborts.
type FeatureExtractor struct {
	logger *logrus.Entry
	pitch  config.PitchConfig

	window []float64

	mu         sync.Mutex
	melRate    int
	melFilters [][]float64
}

// NewFeatureExtractor creates a feature extractor using the given pitch
// search configuration
func NewFeatureExtractor(pitch config.PitchConfig, logger *logrus.Logger) *FeatureExtractor {
	return &FeatureExtractor{
		logger: logger.WithField("component", "feature_extractor"),
		pitch:  pitch,
		window: hammingWindow(analysisFrameSize),
	}
}

// frameAnalysis carries the per-frame measurements a single pass collects
type frameAnalysis struct {
	magnitudes []float64
	voiced     bool
	f0         float64
	acPeak     float64
	amplitude  float64
	samples    []float64
}

// Extract computes the full feature vector for the signal. The category
// restricts the pitch search range (spoken 75-500 Hz, sung 50-1000 Hz by
// default).
func (fe *FeatureExtractor) Extract(signal audio.AudioSignal, category audio.Category) FeatureVector {
	minHz, maxHz := fe.pitchRange(category)

	frames := fe.analyzeFrames(signal, minHz, maxHz)
	if len(frames) == 0 {
		fe.logger.WithField("duration", signal.Duration).Debug("Signal shorter than one analysis frame, using defaults")
		return defaultVector()
	}

	fv := FeatureVector{}
	fe.extractSpectral(frames, signal.SampleRate, &fv)
	fe.extractHarmonic(frames, signal.SampleRate, minHz, maxHz, &fv)
	fe.extractFormants(frames, signal.SampleRate, &fv)
	fe.extractPitch(frames, &fv)
	fv.MFCC = fe.extractMFCC(frames, signal.SampleRate)

	return fv
}

func (fe *FeatureExtractor) pitchRange(category audio.Category) (float64, float64) {
	if category == audio.CategorySung {
		return fe.pitch.SungMinHz, fe.pitch.SungMaxHz
	}
	return fe.pitch.SpokenMinHz, fe.pitch.SpokenMaxHz
}

// analyzeFrames performs the single framing pass all feature families share
func (fe *FeatureExtractor) analyzeFrames(signal audio.AudioSignal, minHz, maxHz float64) []frameAnalysis {
	samples := signal.Samples
	var frames []frameAnalysis

	for offset := 0; offset+analysisFrameSize <= len(samples); offset += analysisHopSize {
		frame := samples[offset : offset+analysisFrameSize]

		fa := frameAnalysis{
			magnitudes: magnitudeSpectrum(frame, fe.window),
			samples:    frame,
		}

		rms, zcr, peak := frameStats(frame)
		fa.amplitude = peak
		fa.voiced = rms > voicedRMSFloor && zcr < voicedZCRCeil

		if fa.voiced {
			fa.f0, fa.acPeak = estimatePitch(frame, signal.SampleRate, minHz, maxHz)
			if fa.f0 == 0 {
				fa.voiced = false
			}
		}

		frames = append(frames, fa)
	}

	return frames
}

func (fe *FeatureExtractor) extractSpectral(frames []frameAnalysis, sampleRate int, fv *FeatureVector) {
	var centroids, rolloffs []float64

	for _, fa := range frames {
		total := 0.0
		for _, m := range fa.magnitudes {
			total += m
		}
		if total == 0 {
			continue
		}

		centroids = append(centroids, spectralCentroid(fa.magnitudes, sampleRate))
		rolloffs = append(rolloffs, spectralRolloff(fa.magnitudes, sampleRate, 0.85))
	}

	fv.SpectralCentroid = fe.meanOrAbsorb("spectral_centroid", centroids, DefaultSpectralCentroid)
	fv.SpectralRolloff = fe.meanOrAbsorb("spectral_rolloff", rolloffs, DefaultSpectralRolloff)
}

func (fe *FeatureExtractor) extractHarmonic(frames []frameAnalysis, sampleRate int, minHz, maxHz float64, fv *FeatureVector) {
	var hnrs, cpps, h1h2s []float64

	for _, fa := range frames {
		if !fa.voiced {
			continue
		}

		if hnr, ok := harmonicsToNoise(fa.acPeak); ok {
			hnrs = append(hnrs, hnr)
		}
		if cpp, ok := cepstralPeakProminence(fa.magnitudes, sampleRate, minHz, maxHz); ok {
			cpps = append(cpps, cpp)
		}
		if h1h2, ok := harmonicAmplitudeDiff(fa.magnitudes, sampleRate, fa.f0); ok {
			h1h2s = append(h1h2s, h1h2)
		}
	}

	fv.HNR = fe.meanOrAbsorb("hnr", hnrs, DefaultHNR)
	fv.CPP = fe.meanOrAbsorb("cpp", cpps, DefaultCPP)
	fv.H1H2 = fe.meanOrAbsorb("h1_h2", h1h2s, DefaultH1H2)
}

func (fe *FeatureExtractor) extractFormants(frames []frameAnalysis, sampleRate int, fv *FeatureVector) {
	// Formant bands in Hz: lower bound, upper bound, minimum spacing above
	// the previous formant
	bands := [4]struct{ lo, hi, spacing float64 }{
		{250, 1000, 0},
		{800, 2500, 150},
		{1500, 3500, 200},
		{2500, 4800, 200},
	}

	var tracked [4][]float64

	for _, fa := range frames {
		if !fa.voiced {
			continue
		}

		peaks := formantPeaks(fa.samples, sampleRate)
		prev := 0.0
		for i, band := range bands {
			for _, peak := range peaks {
				if peak >= band.lo && peak <= band.hi && peak > prev+band.spacing {
					tracked[i] = append(tracked[i], peak)
					prev = peak
					break
				}
			}
		}
	}

	defaults := DefaultFormants()
	fv.Formants = Formants{
		F1: fe.meanOrAbsorb("f1", tracked[0], defaults.F1),
		F2: fe.meanOrAbsorb("f2", tracked[1], defaults.F2),
		F3: fe.meanOrAbsorb("f3", tracked[2], defaults.F3),
		F4: fe.meanOrAbsorb("f4", tracked[3], defaults.F4),
	}
}

func (fe *FeatureExtractor) extractPitch(frames []frameAnalysis, fv *FeatureVector) {
	var f0s, amplitudes []float64
	for _, fa := range frames {
		if fa.voiced && fa.f0 > 0 {
			f0s = append(f0s, fa.f0)
			amplitudes = append(amplitudes, fa.amplitude)
		}
	}

	if len(f0s) == 0 {
		fe.logger.WithError(errors.NewExtractionFailed("pitch", nil)).Debug("Falling back to feature defaults")
		fv.F0Mean = DefaultF0Mean
		fv.F0Range = [2]float64{DefaultF0Min, DefaultF0Max}
		fv.Jitter = DefaultJitter
		fv.Shimmer = DefaultShimmer
		return
	}

	fv.F0Mean = mean(f0s)
	f0Min, f0Max := minMax(f0s)
	fv.F0Range = [2]float64{f0Min, f0Max}
	fv.Jitter = perturbation(periodsFromF0(f0s), DefaultJitter)
	fv.Shimmer = perturbation(amplitudes, DefaultShimmer)
}

func (fe *FeatureExtractor) extractMFCC(frames []frameAnalysis, sampleRate int) []float64 {
	filters := fe.filtersFor(sampleRate)

	sums := make([]float64, MFCCCount)
	count := 0

	for _, fa := range frames {
		melSpectrum := applyMelFilters(fa.magnitudes, filters)
		coeffs := dct(melSpectrum, MFCCCount)
		for i, c := range coeffs {
			sums[i] += c
		}
		count++
	}

	mfcc := make([]float64, MFCCCount)
	if count == 0 {
		return mfcc
	}
	for i := range mfcc {
		mfcc[i] = sums[i] / float64(count)
	}
	return mfcc
}

// filtersFor returns the cached mel filterbank for the sample rate,
// rebuilding it when the rate changes
func (fe *FeatureExtractor) filtersFor(sampleRate int) [][]float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.melRate != sampleRate || fe.melFilters == nil {
		fe.melFilters = melFilterbank(melBankCount, analysisFrameSize/2, sampleRate)
		fe.melRate = sampleRate
	}
	return fe.melFilters
}

// spectralCentroid is the energy-weighted mean frequency of the spectrum
func spectralCentroid(magnitudes []float64, sampleRate int) float64 {
	weightedSum := 0.0
	totalMagnitude := 0.0

	for i, mag := range magnitudes {
		freq := binFrequency(i, len(magnitudes), sampleRate)
		weightedSum += freq * mag
		totalMagnitude += mag
	}

	if totalMagnitude == 0 {
		return 0
	}
	return weightedSum / totalMagnitude
}

// spectralRolloff is the frequency below which the given fraction of
// cumulative spectral energy lies
func spectralRolloff(magnitudes []float64, sampleRate int, threshold float64) float64 {
	totalEnergy := 0.0
	for _, mag := range magnitudes {
		totalEnergy += mag * mag
	}

	targetEnergy := threshold * totalEnergy
	cumulative := 0.0
	for i, mag := range magnitudes {
		cumulative += mag * mag
		if cumulative >= targetEnergy {
			return binFrequency(i, len(magnitudes), sampleRate)
		}
	}
	return binFrequency(len(magnitudes)-1, len(magnitudes), sampleRate)
}

// harmonicsToNoise converts a normalized autocorrelation peak into an HNR
// estimate in dB
func harmonicsToNoise(acPeak float64) (float64, bool) {
	if acPeak <= 0 || acPeak >= 1 {
		return 0, false
	}
	hnr := 10 * math.Log10(acPeak/(1-acPeak))
	if math.IsNaN(hnr) || math.IsInf(hnr, 0) {
		return 0, false
	}
	// Clamp to the measurable range
	if hnr < -20 {
		hnr = -20
	} else if hnr > 40 {
		hnr = 40
	}
	return hnr, true
}

// cepstralPeakProminence measures the dominant cepstral peak in the pitch
// quefrency range against a linear regression baseline, in dB
func cepstralPeakProminence(magnitudes []float64, sampleRate int, minHz, maxHz float64) (float64, bool) {
	n := len(magnitudes) * 2

	// Real cepstrum of the dB spectrum
	buf := make([]complex128, n)
	for i, mag := range magnitudes {
		db := 20 * math.Log10(mag+1e-10)
		buf[i] = complex(db, 0)
		if i > 0 {
			buf[n-i] = complex(db, 0)
		}
	}
	ifft(buf)

	cepstrum := make([]float64, n/2)
	for i := range cepstrum {
		cepstrum[i] = real(buf[i])
	}

	qMin := int(float64(sampleRate) / maxHz)
	qMax := int(float64(sampleRate) / minHz)
	if qMax >= len(cepstrum) {
		qMax = len(cepstrum) - 1
	}
	if qMin < 1 || qMin >= qMax {
		return 0, false
	}

	peakIdx := qMin
	for q := qMin; q <= qMax; q++ {
		if cepstrum[q] > cepstrum[peakIdx] {
			peakIdx = q
		}
	}

	slope, intercept, ok := linearFit(cepstrum[qMin : qMax+1], qMin)
	if !ok {
		return 0, false
	}

	prominence := cepstrum[peakIdx] - (slope*float64(peakIdx) + intercept)
	if math.IsNaN(prominence) || prominence < 0 {
		return 0, false
	}
	return prominence, true
}

// harmonicAmplitudeDiff computes H1-H2: the dB difference between the
// spectral amplitudes at F0 and at its second harmonic
func harmonicAmplitudeDiff(magnitudes []float64, sampleRate int, f0 float64) (float64, bool) {
	h1 := harmonicAmplitude(magnitudes, sampleRate, f0)
	h2 := harmonicAmplitude(magnitudes, sampleRate, 2*f0)
	if h1 <= 0 || h2 <= 0 {
		return 0, false
	}
	diff := 20 * math.Log10(h1/h2)
	if math.IsNaN(diff) || math.IsInf(diff, 0) {
		return 0, false
	}
	return diff, true
}

// harmonicAmplitude picks the strongest bin within one bin of the target
// harmonic frequency
func harmonicAmplitude(magnitudes []float64, sampleRate int, freq float64) float64 {
	binWidth := float64(sampleRate) / float64(2*len(magnitudes))
	center := int(freq/binWidth + 0.5)
	if center < 1 || center >= len(magnitudes)-1 {
		return 0
	}

	best := magnitudes[center]
	for _, idx := range []int{center - 1, center + 1} {
		if magnitudes[idx] > best {
			best = magnitudes[idx]
		}
	}
	return best
}

// formantPeaks returns candidate resonance frequencies from the LPC
// spectral envelope of a pre-emphasized frame, in ascending Hz
func formantPeaks(frame []float64, sampleRate int) []float64 {
	emphasized := make([]float64, len(frame))
	emphasized[0] = frame[0]
	for i := 1; i < len(frame); i++ {
		emphasized[i] = frame[i] - 0.97*frame[i-1]
	}

	lpc := levinsonDurbin(emphasized, lpcOrder)
	if lpc == nil {
		return nil
	}

	envelope := lpcEnvelope(lpc, envelopeBins)

	var peaks []float64
	for b := 1; b < len(envelope)-1; b++ {
		if envelope[b] > envelope[b-1] && envelope[b] >= envelope[b+1] {
			freq := float64(b) * float64(sampleRate) / float64(2*envelopeBins)
			peaks = append(peaks, freq)
		}
	}
	return peaks
}

// estimatePitch finds the fundamental period by the autocorrelation peak
// within the category's lag range. Returns (0, 0) when no confident peak
// exists.
func estimatePitch(frame []float64, sampleRate int, minHz, maxHz float64) (float64, float64) {
	minLag := int(float64(sampleRate) / maxHz)
	maxLag := int(float64(sampleRate) / minHz)
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	if minLag < 1 || minLag >= maxLag {
		return 0, 0
	}

	autocorr := autocorrelate(frame, maxLag+1)
	if autocorr[0] == 0 {
		return 0, 0
	}

	bestLag := 0
	bestVal := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		if autocorr[lag] > bestVal {
			bestVal = autocorr[lag]
			bestLag = lag
		}
	}

	confidence := bestVal / autocorr[0]
	if bestLag == 0 || confidence < pitchConfidenceFloor {
		return 0, 0
	}

	return float64(sampleRate) / float64(bestLag), confidence
}

// perturbation is the mean absolute relative cycle-to-cycle variation of a
// series, in percent
func perturbation(values []float64, fallback float64) float64 {
	if len(values) < 2 {
		return fallback
	}

	avg := mean(values)
	if avg == 0 {
		return fallback
	}

	sum := 0.0
	for i := 1; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
	}
	return sum / float64(len(values)-1) / avg * 100
}

func periodsFromF0(f0s []float64) []float64 {
	periods := make([]float64, 0, len(f0s))
	for _, f0 := range f0s {
		if f0 > 0 {
			periods = append(periods, 1/f0)
		}
	}
	return periods
}

func applyMelFilters(magnitudes []float64, filters [][]float64) []float64 {
	melSpectrum := make([]float64, len(filters))
	for i := range filters {
		for j := 0; j < len(magnitudes) && j < len(filters[i]); j++ {
			power := magnitudes[j] * magnitudes[j]
			melSpectrum[i] += power * filters[i][j]
		}
		if melSpectrum[i] > 0 {
			melSpectrum[i] = math.Log(melSpectrum[i])
		}
	}
	return melSpectrum
}

func frameStats(frame []float64) (rms, zcr, peak float64) {
	sumSquares := 0.0
	zeroCrossings := 0
	for i, s := range frame {
		sumSquares += s * s
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
		if i > 0 && (frame[i-1] >= 0) != (s >= 0) {
			zeroCrossings++
		}
	}
	rms = math.Sqrt(sumSquares / float64(len(frame)))
	zcr = float64(zeroCrossings) / float64(len(frame))
	return rms, zcr, peak
}

func binFrequency(bin, bins, sampleRate int) float64 {
	return float64(bin) * float64(sampleRate) / float64(2*bins)
}

func linearFit(values []float64, offset int) (slope, intercept float64, ok bool) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(offset + i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

func meanOrDefault(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return mean(values)
}

// meanOrAbsorb averages the tracked values for one feature, logging the
// absorbed gap at debug when the feature produced nothing
func (fe *FeatureExtractor) meanOrAbsorb(feature string, values []float64, fallback float64) float64 {
	if len(values) == 0 {
		fe.logger.WithError(errors.NewExtractionFailed(feature, nil)).Debug("Falling back to feature default")
	}
	return meanOrDefault(values, fallback)
}

func defaultVector() FeatureVector {
	return FeatureVector{
		SpectralCentroid: DefaultSpectralCentroid,
		SpectralRolloff:  DefaultSpectralRolloff,
		HNR:              DefaultHNR,
		CPP:              DefaultCPP,
		H1H2:             DefaultH1H2,
		F0Mean:           DefaultF0Mean,
		F0Range:          [2]float64{DefaultF0Min, DefaultF0Max},
		Formants:         DefaultFormants(),
		MFCC:             make([]float64, MFCCCount),
		Jitter:           DefaultJitter,
		Shimmer:          DefaultShimmer,
	}
}
