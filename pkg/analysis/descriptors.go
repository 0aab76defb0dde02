package analysis

import (
	"math"

	"voiceprint-server/pkg/audio"
)

const (
	descriptorMelBanks = 48
	chromaBins         = 12
)

// CepstralDescriptors computes per-coefficient means and standard
// deviations of count mel-cepstral coefficients across all analysis frames.
// Both slices are zero-valued when the signal is shorter than one frame.
func CepstralDescriptors(signal audio.AudioSignal, count int) (means, stds []float64) {
	window := hammingWindow(analysisFrameSize)
	filters := melFilterbank(descriptorMelBanks, analysisFrameSize/2, signal.SampleRate)

	var perFrame [][]float64
	for offset := 0; offset+analysisFrameSize <= len(signal.Samples); offset += analysisHopSize {
		frame := signal.Samples[offset : offset+analysisFrameSize]
		melSpectrum := applyMelFilters(magnitudeSpectrum(frame, window), filters)
		perFrame = append(perFrame, dct(melSpectrum, count))
	}

	means = make([]float64, count)
	stds = make([]float64, count)
	if len(perFrame) == 0 {
		return means, stds
	}

	series := make([]float64, len(perFrame))
	for c := 0; c < count; c++ {
		for f, coeffs := range perFrame {
			series[f] = coeffs[c]
		}
		means[c] = mean(series)
		stds[c] = stdDev(series, means[c])
	}
	return means, stds
}

// ChromaMeans computes the mean 12-bin chroma vector over all analysis
// frames. Each frame's energy is folded onto pitch classes and scaled to a
// unit maximum before averaging.
func ChromaMeans(signal audio.AudioSignal) []float64 {
	window := hammingWindow(analysisFrameSize)

	sums := make([]float64, chromaBins)
	frames := 0

	for offset := 0; offset+analysisFrameSize <= len(signal.Samples); offset += analysisHopSize {
		frame := signal.Samples[offset : offset+analysisFrameSize]
		magnitudes := magnitudeSpectrum(frame, window)

		chroma := make([]float64, chromaBins)
		for bin := 1; bin < len(magnitudes); bin++ {
			freq := binFrequency(bin, len(magnitudes), signal.SampleRate)
			if freq < 20 {
				continue
			}
			// Fold the bin onto its pitch class
			midi := 69 + 12*math.Log2(freq/440)
			class := int(math.Round(midi)) % chromaBins
			if class < 0 {
				class += chromaBins
			}
			chroma[class] += magnitudes[bin] * magnitudes[bin]
		}

		peak := 0.0
		for _, c := range chroma {
			if c > peak {
				peak = c
			}
		}
		if peak > 0 {
			for i := range chroma {
				sums[i] += chroma[i] / peak
			}
		}
		frames++
	}

	out := make([]float64, chromaBins)
	if frames == 0 {
		return out
	}
	for i := range out {
		out[i] = sums[i] / float64(frames)
	}
	return out
}
