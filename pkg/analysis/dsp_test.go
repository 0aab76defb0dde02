package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHammingWindow(t *testing.T) {
	w := hammingWindow(64)
	require.Len(t, w, 64)

	assert.InDelta(t, 0.08, w[0], 1e-9)
	assert.InDelta(t, 1.0, w[32], 0.01)
	for _, v := range w {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestFFTRoundTrip(t *testing.T) {
	buf := make([]complex128, 16)
	for i := range buf {
		buf[i] = complex(math.Sin(float64(i)), 0)
	}
	original := make([]complex128, len(buf))
	copy(original, buf)

	fft(buf)
	ifft(buf)

	for i := range buf {
		assert.InDelta(t, real(original[i]), real(buf[i]), 1e-9)
		assert.InDelta(t, imag(original[i]), imag(buf[i]), 1e-9)
	}
}

func TestMagnitudeSpectrumPeakBin(t *testing.T) {
	rate := 16000
	frame := make([]float64, analysisFrameSize)
	for i := range frame {
		frame[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / float64(rate))
	}

	magnitudes := magnitudeSpectrum(frame, hammingWindow(analysisFrameSize))

	peak := 0
	for i, m := range magnitudes {
		if m > magnitudes[peak] {
			peak = i
		}
	}

	peakHz := binFrequency(peak, len(magnitudes), rate)
	assert.InDelta(t, 1000.0, peakHz, float64(rate)/float64(analysisFrameSize))
}

func TestAutocorrelateLagZeroIsEnergy(t *testing.T) {
	frame := []float64{1, -2, 3, -4}
	ac := autocorrelate(frame, 3)
	require.NotEmpty(t, ac)
	assert.InDelta(t, 30.0, ac[0], 1e-9)
}

func TestMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{100, 440, 1000, 4000} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
}

func TestMelFilterbankCoverage(t *testing.T) {
	filters := melFilterbank(26, analysisFrameSize/2, 16000)
	require.Len(t, filters, 26)

	for _, filter := range filters {
		require.Len(t, filter, analysisFrameSize/2)
		sum := 0.0
		for _, v := range filter {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.Greater(t, sum, 0.0)
	}
}

func TestDCTFirstCoefficient(t *testing.T) {
	input := []float64{1, 1, 1, 1}
	coeffs := dct(input, 2)
	require.Len(t, coeffs, 2)

	// A constant input concentrates in the zeroth coefficient
	assert.NotZero(t, coeffs[0])
	assert.InDelta(t, 0.0, coeffs[1], 1e-9)
}

func TestLevinsonDurbinPredictsAR1(t *testing.T) {
	// AR(1) process x[n] = 0.9 x[n-1] + e[n], noiseless after init
	frame := make([]float64, 256)
	frame[0] = 1
	for i := 1; i < len(frame); i++ {
		frame[i] = 0.9 * frame[i-1]
	}

	lpc := levinsonDurbin(frame, 2)
	require.NotEmpty(t, lpc)
	assert.InDelta(t, 0.9, lpc[0], 0.05)
}

func TestMinMax(t *testing.T) {
	lo, hi := minMax([]float64{3, -1, 7, 2})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 7.0, hi)
}
