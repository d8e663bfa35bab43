package stats

import (
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram is a thread-safe wrapper around hdrhistogram. Values are
// recorded in microseconds and reported in milliseconds.
type Histogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewHistogram() *Histogram {
	// 1us to 10min, 3 significant figures
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &Histogram{hist: h}
}

// RecordMillis records a latency given in milliseconds. Values outside the
// trackable range are clamped so live stats never lose a sample.
func (h *Histogram) RecordMillis(ms float64) {
	us := int64(ms * 1000)
	if us < 1 {
		us = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if max := h.hist.HighestTrackableValue(); us > max {
		us = max
	}
	_ = h.hist.RecordValue(us)
}

func (h *Histogram) QuantileMillis(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}

func (h *Histogram) MeanMillis() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean() / 1000.0
}

func (h *Histogram) MaxMillis() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.Max()) / 1000.0
}

func (h *Histogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}

// WriteDistribution prints the percentile distribution in milliseconds.
func (h *Histogram) WriteDistribution(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.hist.PercentilesPrint(w, 5, 1000.0)
	return err
}
