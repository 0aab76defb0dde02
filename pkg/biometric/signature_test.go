package biometric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceprint-server/pkg/errors"
)

func TestAggregateEmptySet(t *testing.T) {
	_, err := Aggregate(nil, AggregateMean)
	assert.Error(t, err)
}

func TestAggregateDimensionMismatch(t *testing.T) {
	_, err := Aggregate([]Embedding{{1, 0}, {1, 0, 0}}, AggregateMean)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrDimensionMismatch))
}

func TestAggregateIdenticalCopies(t *testing.T) {
	e := Embedding{0.1, 0.7, -0.3, 0.2}.Normalized()

	for _, method := range []AggregationMethod{AggregateMean, AggregateMedian} {
		centroid, err := Aggregate([]Embedding{e, e, e}, method)
		require.NoError(t, err)
		require.Len(t, centroid, len(e))
		for i := range e {
			assert.InDelta(t, e[i], centroid[i], 1e-9)
		}
	}
}

func TestAggregateIsUnitNormalized(t *testing.T) {
	embeddings := []Embedding{
		{3, 1, 0, 0},
		{1, 4, 0, 0},
		{0, 1, 5, 0},
	}

	for _, method := range []AggregationMethod{AggregateMean, AggregateMedian} {
		centroid, err := Aggregate(embeddings, method)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, centroid.Norm(), 1e-9)
	}
}

func TestAggregateRejectsDegenerateCentroid(t *testing.T) {
	// The per-dimension median of mutually orthogonal embeddings is the
	// zero vector, which has no unit normalization
	orthogonal := []Embedding{
		{3, 0, 0, 0},
		{0, 4, 0, 0},
		{0, 0, 5, 0},
	}
	_, err := Aggregate(orthogonal, AggregateMedian)
	assert.Error(t, err)
	assert.Equal(t, "DEGENERATE_CENTROID", errors.GetErrorCode(err))

	// Opposite embeddings cancel under the mean the same way
	opposite := []Embedding{{1, 0}, {-1, 0}}
	_, err = Aggregate(opposite, AggregateMean)
	assert.Error(t, err)
}

func TestAggregateOrderIndependent(t *testing.T) {
	a := Embedding{0.9, 0.1, 0.2}.Normalized()
	b := Embedding{0.2, 0.8, 0.1}.Normalized()
	c := Embedding{0.4, 0.4, 0.7}.Normalized()

	for _, method := range []AggregationMethod{AggregateMean, AggregateMedian} {
		first, err := Aggregate([]Embedding{a, b, c}, method)
		require.NoError(t, err)
		second, err := Aggregate([]Embedding{c, a, b}, method)
		require.NoError(t, err)

		for i := range first {
			assert.InDelta(t, first[i], second[i], 1e-9)
		}
	}
}

func TestAggregateMedianResistsOutlier(t *testing.T) {
	typical := Embedding{1, 0, 0}
	outlier := Embedding{0, 0, 1}

	centroid, err := Aggregate([]Embedding{typical, typical, typical, outlier, typical}, AggregateMedian)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, centroid[0], 1e-9)
	assert.InDelta(t, 0.0, centroid[2], 1e-9)
}

func TestNewSignature(t *testing.T) {
	embeddings := []Embedding{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0.95, 0.05, 0, 0},
	}
	qualities := []float64{80, 90, 100}

	signature, err := NewSignature("", "alice", embeddings, qualities, AggregateMean, false)
	require.NoError(t, err)

	assert.Equal(t, "alice", signature.Name)
	assert.Equal(t, 3, signature.SampleCount)
	assert.InDelta(t, 90.0, signature.AverageQuality, 1e-9)
	assert.True(t, signature.HasSpokenCentroid)
	assert.False(t, signature.HasSingingCentroid)
	assert.True(t, signature.Active())
	assert.False(t, signature.EnrolledAt.IsZero())
	assert.InDelta(t, 1.0, signature.Centroid.Norm(), 1e-9)
}

func TestNormalizedZeroVector(t *testing.T) {
	zero := make(Embedding, 4)
	out := zero.Normalized()
	for _, v := range out {
		assert.Equal(t, 0.0, v)
	}
}

func TestNormalizedUnitLength(t *testing.T) {
	e := Embedding{3, 4}
	out := e.Normalized()
	assert.InDelta(t, 1.0, out.Norm(), 1e-12)
	assert.InDelta(t, 0.6, out[0], 1e-12)
	assert.InDelta(t, 0.8, out[1], 1e-12)

	// Source is untouched
	assert.Equal(t, 5.0, math.Sqrt(e[0]*e[0]+e[1]*e[1]))
}
