package biometric

import (
	"sort"
	"time"

	"voiceprint-server/pkg/errors"
)

// AggregationMethod selects how enrollment embeddings are merged
type AggregationMethod string

const (
	// AggregateMean averages embeddings per dimension
	AggregateMean AggregationMethod = "mean"

	// AggregateMedian takes the per-dimension median
	AggregateMedian AggregationMethod = "median"
)

// VoiceSignature is the enrolled identity of one speaker: a unit-normalized
// centroid embedding plus provenance. It is created whole at enrollment and
// replaced whole on re-aggregation, never partially updated.
type VoiceSignature struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Centroid Embedding `json:"centroid"`

	SampleCount    int     `json:"sample_count"`
	AverageQuality float64 `json:"average_quality"`

	HasSpokenCentroid  bool `json:"has_spoken_centroid"`
	HasSingingCentroid bool `json:"has_singing_centroid"`

	Status     string    `json:"status"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Active reports whether the signature participates in 1:N verification
func (s *VoiceSignature) Active() bool {
	return s.Status == "active"
}

// Aggregate merges embeddings of one speaker into a unit-normalized
// centroid. Aggregation is deterministic and order-independent: re-running
// it over the same embedding set yields the same centroid. Minimum sample
// count is a caller contract, not enforced here; an empty set is rejected,
// as is a set whose centroid collapses to zero norm (mutually cancelling
// embeddings), since a zero centroid cannot be unit-normalized.
func Aggregate(embeddings []Embedding, method AggregationMethod) (Embedding, error) {
	if len(embeddings) == 0 {
		return nil, errors.New("no embeddings to aggregate").WithCode("EMPTY_AGGREGATE")
	}

	dim := len(embeddings[0])
	for _, e := range embeddings {
		if len(e) != dim {
			return nil, errors.Wrap(errors.ErrDimensionMismatch, "aggregate", map[string]interface{}{
				"expected": dim,
				"got":      len(e),
			})
		}
	}

	centroid := make(Embedding, dim)
	switch method {
	case AggregateMedian:
		column := make([]float64, len(embeddings))
		for d := 0; d < dim; d++ {
			for i, e := range embeddings {
				column[i] = e[d]
			}
			sort.Float64s(column)
			mid := len(column) / 2
			if len(column)%2 == 0 {
				centroid[d] = (column[mid-1] + column[mid]) / 2
			} else {
				centroid[d] = column[mid]
			}
		}
	default:
		for _, e := range embeddings {
			for d, v := range e {
				centroid[d] += v
			}
		}
		for d := range centroid {
			centroid[d] /= float64(len(embeddings))
		}
	}

	if centroid.Norm() == 0 {
		return nil, errors.New("aggregated centroid has zero norm", map[string]interface{}{
			"method":  string(method),
			"samples": len(embeddings),
		}).WithCode("DEGENERATE_CENTROID")
	}

	return centroid.Normalized(), nil
}

// NewSignature builds a VoiceSignature from enrollment embeddings and their
// quality scores
func NewSignature(id, name string, embeddings []Embedding, qualities []float64, method AggregationMethod, includesSinging bool) (*VoiceSignature, error) {
	centroid, err := Aggregate(embeddings, method)
	if err != nil {
		return nil, err
	}

	avgQuality := 0.0
	for _, q := range qualities {
		avgQuality += q
	}
	if len(qualities) > 0 {
		avgQuality /= float64(len(qualities))
	}

	return &VoiceSignature{
		ID:                 id,
		Name:               name,
		Centroid:           centroid,
		SampleCount:        len(embeddings),
		AverageQuality:     avgQuality,
		HasSpokenCentroid:  true,
		HasSingingCentroid: includesSinging,
		Status:             "active",
		EnrolledAt:         time.Now().UTC(),
	}, nil
}
