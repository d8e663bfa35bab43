package stats

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeNearestRank(t *testing.T) {
	s, err := Summarize([]float64{10, 20, 30, 40, 50})
	require.NoError(t, err)

	assert.Equal(t, 30.0, s.P50)
	assert.Equal(t, 50.0, s.P95)
	assert.Equal(t, 50.0, s.P99)
	assert.Equal(t, 30.0, s.Avg)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 50.0, s.Max)
	assert.Equal(t, 5, s.Count)
}

func TestSummarizeEvenLengthIsNotTextbookMedian(t *testing.T) {
	s, err := Summarize([]float64{4, 1, 3, 2})
	require.NoError(t, err)

	// floor(4*0.5) = 2 -> 3, not 2.5
	assert.Equal(t, 3.0, s.P50)
}

func TestSummarizeSingleSample(t *testing.T) {
	s, err := Summarize([]float64{7.5})
	require.NoError(t, err)

	assert.Equal(t, 7.5, s.Avg)
	assert.Equal(t, 7.5, s.P50)
	assert.Equal(t, 7.5, s.P95)
	assert.Equal(t, 7.5, s.P99)
}

func TestSummarizeHundred(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[99-i] = float64(i + 1)
	}
	s, err := Summarize(samples)
	require.NoError(t, err)

	assert.Equal(t, 51.0, s.P50)
	assert.Equal(t, 96.0, s.P95)
	assert.Equal(t, 100.0, s.P99)
	assert.Equal(t, 50.5, s.Avg)
	// input is left untouched
	assert.Equal(t, 100.0, samples[0])
}

func TestSummarizeKeepsNegativeValues(t *testing.T) {
	s, err := Summarize([]float64{-2, 4})
	require.NoError(t, err)
	assert.Equal(t, -2.0, s.Min)
	assert.Equal(t, 1.0, s.Avg)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestThroughput(t *testing.T) {
	assert.Equal(t, 2000.0, Throughput(1000, 500))
	assert.Equal(t, 0.0, Throughput(10, 0))
}

func TestHistogram(t *testing.T) {
	h := NewHistogram()
	for i := 1; i <= 100; i++ {
		h.RecordMillis(float64(i))
	}
	h.RecordMillis(-1)

	assert.Equal(t, int64(101), h.TotalCount())
	assert.InDelta(t, 50.0, h.QuantileMillis(50), 1.0)
	assert.InDelta(t, 100.0, h.MaxMillis(), 0.5)

	var buf bytes.Buffer
	require.NoError(t, h.WriteDistribution(&buf))
	assert.Contains(t, buf.String(), "Percentile")
}
