package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceprint-server/pkg/config"
	"voiceprint-server/pkg/errors"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		TargetSampleRate: 16000,
		TargetLoudnessDB: -23,
		VADFrameSize:     2048,
		VADHopSize:       512,
		VADRMSThreshold:  0.02,
	}
}

func sineSamples(freq, amplitude, duration float64, rate int) []float64 {
	n := int(duration * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return samples
}

// wavBytes encodes samples as a PCM16 WAV file, duplicating the signal
// across channels
func wavBytes(t *testing.T, samples []float64, rate, channels int) []byte {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		v := int16(s * 32767)
		for ch := 0; ch < channels; ch++ {
			require.NoError(t, binary.Write(&data, binary.LittleEndian, v))
		}
	}

	blockAlign := channels * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestProcessCanonicalizesSignal(t *testing.T) {
	p := NewPreprocessor(testAudioConfig(), nil, testLogger())

	raw := wavBytes(t, sineSamples(220, 0.5, 2, 44100), 44100, 1)
	signal, segments, err := p.Process(raw, CategorySpoken)
	require.NoError(t, err)

	assert.Equal(t, 16000, signal.SampleRate)
	assert.InDelta(t, 2.0, signal.Duration, 0.01)
	assert.NotEmpty(t, segments)

	// Loudness normalization brings RMS to the -23 dBFS target
	rms := frameRMS(signal.Samples)
	assert.InDelta(t, math.Pow(10, -23.0/20), rms, 0.005)
}

func TestProcessStereoDownmix(t *testing.T) {
	p := NewPreprocessor(testAudioConfig(), nil, testLogger())

	raw := wavBytes(t, sineSamples(220, 0.5, 1, 16000), 16000, 2)
	signal, _, err := p.Process(raw, CategorySpoken)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, signal.Duration, 0.01)
}

func TestProcessEmptyInput(t *testing.T) {
	p := NewPreprocessor(testAudioConfig(), nil, testLogger())

	_, _, err := p.Process(nil, CategorySpoken)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidAudio))
}

func TestProcessGarbageInput(t *testing.T) {
	p := NewPreprocessor(testAudioConfig(), nil, testLogger())

	_, _, err := p.Process([]byte("definitely not a WAV file"), CategorySung)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidAudio))
}

func TestProcessHeaderOnly(t *testing.T) {
	p := NewPreprocessor(testAudioConfig(), nil, testLogger())

	raw := wavBytes(t, nil, 16000, 1)
	_, _, err := p.Process(raw, CategorySpoken)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidAudio))
}

func TestVoicedSegmentsLocateSpeech(t *testing.T) {
	p := NewPreprocessor(testAudioConfig(), nil, testLogger())

	// One second of silence, one of tone, one of silence
	samples := make([]float64, 0, 3*16000)
	samples = append(samples, make([]float64, 16000)...)
	samples = append(samples, sineSamples(220, 0.5, 1, 16000)...)
	samples = append(samples, make([]float64, 16000)...)

	_, segments, err := p.Process(wavBytes(t, samples, 16000, 1), CategorySpoken)
	require.NoError(t, err)

	require.Len(t, segments, 1)
	assert.InDelta(t, 1.0, segments[0].Start, 0.2)
	assert.InDelta(t, 2.0, segments[0].End, 0.2)
}

func TestUnvoicedSignalFallsBackToFullDuration(t *testing.T) {
	p := NewPreprocessor(testAudioConfig(), nil, testLogger())

	_, segments, err := p.Process(wavBytes(t, make([]float64, 16000), 16000, 1), CategorySpoken)
	require.NoError(t, err)

	require.Len(t, segments, 1)
	assert.Equal(t, 0.0, segments[0].Start)
	assert.InDelta(t, 1.0, segments[0].End, 0.01)
}

func TestResampleLinear(t *testing.T) {
	in := sineSamples(100, 0.5, 1, 44100)
	out := resampleLinear(in, 44100, 16000)
	assert.InDelta(t, 16000, len(out), 2)

	// Same rate passes through
	assert.Equal(t, len(in), len(resampleLinear(in, 44100, 44100)))
}

func TestNormalizeLoudness(t *testing.T) {
	samples := sineSamples(220, 0.9, 1, 16000)
	out := normalizeLoudness(samples, -23)
	assert.InDelta(t, math.Pow(10, -23.0/20), frameRMS(out), 1e-6)

	// Silence is returned unchanged
	silence := make([]float64, 100)
	assert.Equal(t, silence, normalizeLoudness(silence, -23))
}
