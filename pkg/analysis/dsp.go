package analysis

import (
	"math"
	"math/cmplx"
)

// hammingWindow returns a Hamming window of the given length
func hammingWindow(size int) []float64 {
	window := make([]float64, size)
	for i := 0; i < size; i++ {
		window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(size-1))
	}
	return window
}

// fft computes an in-place radix-2 FFT. The input length must be a power
// of two.
func fft(buf []complex128) {
	n := len(buf)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := cmplx.Exp(complex(0, angle))
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				u := buf[start+k]
				v := buf[start+k+length/2] * w
				buf[start+k] = u + v
				buf[start+k+length/2] = u - v
				w *= wl
			}
		}
	}
}

// ifft computes the inverse FFT in place
func ifft(buf []complex128) {
	for i := range buf {
		buf[i] = cmplx.Conj(buf[i])
	}
	fft(buf)
	n := complex(float64(len(buf)), 0)
	for i := range buf {
		buf[i] = cmplx.Conj(buf[i]) / n
	}
}

// magnitudeSpectrum returns the single-sided magnitude spectrum of a
// windowed frame
func magnitudeSpectrum(frame, window []float64) []float64 {
	n := len(frame)
	buf := make([]complex128, n)
	for i := 0; i < n; i++ {
		buf[i] = complex(frame[i]*window[i], 0)
	}
	fft(buf)

	magnitudes := make([]float64, n/2)
	for i := range magnitudes {
		magnitudes[i] = cmplx.Abs(buf[i])
	}
	return magnitudes
}

// autocorrelate computes the autocorrelation of a frame up to maxLag
func autocorrelate(frame []float64, maxLag int) []float64 {
	if maxLag > len(frame) {
		maxLag = len(frame)
	}
	autocorr := make([]float64, maxLag)
	for lag := 0; lag < maxLag; lag++ {
		sum := 0.0
		for i := 0; i < len(frame)-lag; i++ {
			sum += frame[i] * frame[i+lag]
		}
		autocorr[lag] = sum
	}
	return autocorr
}

// levinsonDurbin solves for LPC coefficients of the given order from the
// frame's autocorrelation. Returns nil when the frame has no energy.
func levinsonDurbin(frame []float64, order int) []float64 {
	autocorr := autocorrelate(frame, order+1)
	if autocorr[0] == 0 {
		return nil
	}

	lpc := make([]float64, order)
	tmp := make([]float64, order)
	errEnergy := autocorr[0]

	for i := 0; i < order; i++ {
		acc := autocorr[i+1]
		for j := 0; j < i; j++ {
			acc -= lpc[j] * autocorr[i-j]
		}
		k := acc / errEnergy

		copy(tmp, lpc[:i])
		lpc[i] = k
		for j := 0; j < i; j++ {
			lpc[j] = tmp[j] - k*tmp[i-1-j]
		}

		errEnergy *= 1 - k*k
		if errEnergy <= 0 {
			break
		}
	}

	return lpc
}

// lpcEnvelope evaluates the LPC spectral envelope 1/|A(e^jw)| at bins
// linearly spaced from 0 to the Nyquist frequency
func lpcEnvelope(lpc []float64, bins int) []float64 {
	envelope := make([]float64, bins)
	for b := 0; b < bins; b++ {
		omega := math.Pi * float64(b) / float64(bins)
		// A(e^jw) = 1 - sum(a_k e^{-jkw})
		re, im := 1.0, 0.0
		for k, a := range lpc {
			angle := -omega * float64(k+1)
			re -= a * math.Cos(angle)
			im -= a * math.Sin(angle)
		}
		denom := math.Sqrt(re*re + im*im)
		if denom < 1e-12 {
			denom = 1e-12
		}
		envelope[b] = 1 / denom
	}
	return envelope
}

// melFilterbank builds triangular filters spaced on the mel scale over
// fftBins single-sided spectrum bins
func melFilterbank(banks, fftBins, sampleRate int) [][]float64 {
	melMin := hzToMel(0)
	melMax := hzToMel(float64(sampleRate) / 2)

	melPoints := make([]float64, banks+2)
	for i := range melPoints {
		melPoints[i] = melMin + float64(i)*(melMax-melMin)/float64(len(melPoints)-1)
	}

	hzPoints := make([]float64, len(melPoints))
	for i, mel := range melPoints {
		hzPoints[i] = melToHz(mel)
	}

	filters := make([][]float64, banks)
	for i := 0; i < banks; i++ {
		filters[i] = make([]float64, fftBins)

		leftHz := hzPoints[i]
		centerHz := hzPoints[i+1]
		rightHz := hzPoints[i+2]

		for j := 0; j < fftBins; j++ {
			freq := float64(j) * float64(sampleRate) / float64(2*fftBins)

			if freq >= leftHz && freq <= centerHz {
				filters[i][j] = (freq - leftHz) / (centerHz - leftHz)
			} else if freq > centerHz && freq <= rightHz {
				filters[i][j] = (rightHz - freq) / (rightHz - centerHz)
			}
		}
	}
	return filters
}

// dct computes the first numCoeffs DCT-II coefficients of the input
func dct(input []float64, numCoeffs int) []float64 {
	if numCoeffs > len(input) {
		numCoeffs = len(input)
	}

	out := make([]float64, numCoeffs)
	n := len(input)
	for k := 0; k < numCoeffs; k++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += input[j] * math.Cos(math.Pi*float64(k)*float64(2*j+1)/float64(2*n))
		}
		out[k] = sum
	}
	return out
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
