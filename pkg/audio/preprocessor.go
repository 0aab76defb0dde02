package audio

import (
	"bytes"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	wav "github.com/youpy/go-wav"

	"voiceprint-server/pkg/config"
	"voiceprint-server/pkg/errors"
)

// Preprocessor canonicalizes raw audio into a normalized mono signal plus
// voice-activity segments
type Preprocessor struct {
	logger   *logrus.Entry
	cfg      config.AudioConfig
	isolator VocalIsolator
}

// NewPreprocessor creates a preprocessor with the given configuration.
// A nil isolator selects the pass-through implementation.
func NewPreprocessor(cfg config.AudioConfig, isolator VocalIsolator, logger *logrus.Logger) *Preprocessor {
	if isolator == nil {
		isolator = PassthroughIsolator{}
	}

	return &Preprocessor{
		logger:   logger.WithField("component", "preprocessor"),
		cfg:      cfg,
		isolator: isolator,
	}
}

// Process decodes raw audio bytes and produces the canonical AudioSignal
// and its voiced segments. Unreadable or empty input fails with
// ErrInvalidAudio.
func (p *Preprocessor) Process(raw []byte, category Category) (AudioSignal, []VoicedSegment, error) {
	samples, sourceRate, err := decodeWAV(raw)
	if err != nil {
		return AudioSignal{}, nil, err
	}

	if sourceRate != p.cfg.TargetSampleRate {
		samples = resampleLinear(samples, sourceRate, p.cfg.TargetSampleRate)
	}

	samples = normalizeLoudness(samples, p.cfg.TargetLoudnessDB)

	if category == CategorySung && p.accompanimentDetected(samples) {
		samples = p.isolator.Isolate(samples, p.cfg.TargetSampleRate)
	}

	signal := AudioSignal{
		Samples:    samples,
		SampleRate: p.cfg.TargetSampleRate,
		Duration:   float64(len(samples)) / float64(p.cfg.TargetSampleRate),
	}

	segments := p.detectVoicedSegments(signal)

	p.logger.WithFields(logrus.Fields{
		"duration":        signal.Duration,
		"sample_rate":     signal.SampleRate,
		"voiced_segments": len(segments),
		"category":        category,
	}).Debug("Audio preprocessed")

	return signal, segments, nil
}

// detectVoicedSegments runs frame-wise energy VAD over the signal and merges
// contiguous voiced frames into segments. An entirely unvoiced signal yields
// one full-duration segment.
func (p *Preprocessor) detectVoicedSegments(signal AudioSignal) []VoicedSegment {
	frameSize := p.cfg.VADFrameSize
	hopSize := p.cfg.VADHopSize

	var segments []VoicedSegment
	inVoiced := false
	startFrame := 0
	frame := 0

	for offset := 0; offset+frameSize <= len(signal.Samples); offset += hopSize {
		voiced := frameRMS(signal.Samples[offset:offset+frameSize]) > p.cfg.VADRMSThreshold

		if voiced && !inVoiced {
			startFrame = frame
			inVoiced = true
		} else if !voiced && inVoiced {
			segments = append(segments, VoicedSegment{
				Start: p.frameToSeconds(startFrame),
				End:   p.frameToSeconds(frame),
			})
			inVoiced = false
		}
		frame++
	}

	if inVoiced {
		segments = append(segments, VoicedSegment{
			Start: p.frameToSeconds(startFrame),
			End:   signal.Duration,
		})
	}

	if len(segments) == 0 {
		return []VoicedSegment{{Start: 0, End: signal.Duration}}
	}
	return segments
}

func (p *Preprocessor) frameToSeconds(frame int) float64 {
	return float64(frame*p.cfg.VADHopSize) / float64(p.cfg.TargetSampleRate)
}

// accompanimentDetected reports whether the sung recording carries backing
// instrumentation. Detection is not implemented yet, so isolation never
// triggers; the hook keeps the sung path explicit.
func (p *Preprocessor) accompanimentDetected(samples []float64) bool {
	return false
}

// decodeWAV parses 16-bit PCM WAV bytes into mono float64 samples
func decodeWAV(raw []byte) ([]float64, int, error) {
	if len(raw) == 0 {
		return nil, 0, errors.NewInvalidAudio("empty input")
	}

	reader := wav.NewReader(bytes.NewReader(raw))
	format, err := reader.Format()
	if err != nil {
		return nil, 0, errors.NewInvalidAudio("unreadable WAV header", map[string]interface{}{
			"cause": err.Error(),
		})
	}

	if format.BitsPerSample != 16 {
		return nil, 0, errors.NewInvalidAudio("unsupported bits per sample", map[string]interface{}{
			"bits_per_sample": format.BitsPerSample,
		})
	}
	if format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, 0, errors.NewInvalidAudio("corrupt WAV format chunk")
	}

	channels := int(format.NumChannels)
	var samples []float64

	for {
		frames, err := reader.ReadSamples(2048)
		for _, frame := range frames {
			// Downmix by averaging channels
			sum := 0.0
			for ch := 0; ch < channels; ch++ {
				sum += float64(reader.IntValue(frame, uint(ch))) / 32768.0
			}
			samples = append(samples, sum/float64(channels))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, errors.NewInvalidAudio("truncated WAV data", map[string]interface{}{
				"cause": err.Error(),
			})
		}
	}

	if len(samples) == 0 {
		return nil, 0, errors.NewInvalidAudio("no audio samples")
	}

	return samples, int(format.SampleRate), nil
}

// resampleLinear converts samples between rates with linear interpolation
func resampleLinear(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// normalizeLoudness scales the signal so its RMS matches the target level
// in dBFS, clamping the result to [-1, 1]
func normalizeLoudness(samples []float64, targetDB float64) []float64 {
	rms := frameRMS(samples)
	if rms == 0 {
		return samples
	}

	targetRMS := math.Pow(10, targetDB/20)
	gain := targetRMS / rms

	out := make([]float64, len(samples))
	for i, s := range samples {
		v := s * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = v
	}
	return out
}

func frameRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
