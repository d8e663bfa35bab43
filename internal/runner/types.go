package runner

import (
	"time"

	"github.com/pkg/errors"

	"echobench/internal/stats"
	"echobench/internal/transport"
)

const (
	ClockMonotonic = "monotonic"
	ClockWire      = "wire"
)

// Config is the benchmark configuration. It is not modified once a run starts.
type Config struct {
	Concurrency   int `mapstructure:"concurrency" json:"concurrency"`
	MessageSize   int `mapstructure:"message_size" json:"message_size"`
	TotalMessages int `mapstructure:"total_messages" json:"total_messages"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout"`
	// RequestTimeout force-completes requests left unanswered for longer.
	// Zero waits forever.
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	// LatencyClock selects the send side of the latency: the monotonic send
	// time of the local record, or the echoed epoch-millis wire timestamp.
	LatencyClock   string        `mapstructure:"latency_clock" json:"latency_clock"`
	UpdateInterval time.Duration `mapstructure:"update_interval" json:"update_interval"`

	Transport transport.Options `mapstructure:"transport" json:"transport"`
}

func DefaultConfig() Config {
	return Config{
		Concurrency:    10,
		MessageSize:    100,
		TotalMessages:  1000,
		ConnectTimeout: 10 * time.Second,
		LatencyClock:   ClockMonotonic,
		UpdateInterval: 200 * time.Millisecond,
		Transport:      transport.DefaultOptions(),
	}
}

func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.MessageSize < 0 {
		return errors.Errorf("message size must not be negative, got %d", c.MessageSize)
	}
	if c.TotalMessages <= 0 {
		return errors.Errorf("total messages must be positive, got %d", c.TotalMessages)
	}
	if c.ConnectTimeout < 0 || c.RequestTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	switch c.LatencyClock {
	case ClockMonotonic, ClockWire:
	default:
		return errors.Errorf("unknown latency clock %q", c.LatencyClock)
	}
	return errors.Wrap(c.Transport.Validate(), "transport options")
}

// Sample is one matched round trip.
type Sample struct {
	RequestID     uint64  `json:"request_id"`
	LatencyMillis float64 `json:"latency_ms"`
}

// Counts tallies the requests that resolved without a sample, plus
// anomalies that did not resolve anything.
type Counts struct {
	SendErrors        int `json:"send_errors"`
	ParseErrors       int `json:"parse_errors"`
	Timeouts          int `json:"timeouts"`
	CorrelationMisses int `json:"correlation_misses"`
	NegativeLatencies int `json:"negative_latencies"`
}

func (c Counts) Failed() int {
	return c.SendErrors + c.ParseErrors + c.Timeouts
}

// Result is the outcome of a single transport run.
type Result struct {
	Transport    string        `json:"transport"`
	Samples      []Sample      `json:"samples"`
	Sent         int           `json:"sent"`
	Completed    int           `json:"completed"`
	PeakInFlight int           `json:"peak_in_flight"`
	Counts       Counts        `json:"counts"`
	Elapsed      time.Duration `json:"elapsed"`
	Throughput   float64       `json:"throughput_per_sec"`

	Histogram *stats.Histogram `json:"-"`
}

func (r *Result) Latencies() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.LatencyMillis
	}
	return out
}

func (r *Result) ElapsedMillis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// StatsSnapshot is sent over the updates channel while a run is active.
type StatsSnapshot struct {
	Transport string
	Total     int
	Sent      int
	Completed int
	Samples   int
	Failed    int
	Misses    int
	Inflight  int
	Elapsed   time.Duration

	// Pre-calculated from the live histogram (cheap copy)
	AvgMs float64
	P50Ms float64
	P99Ms float64
	Done  bool
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot
