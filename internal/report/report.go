package report

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"echobench/internal/runner"
	"echobench/internal/stats"
	"echobench/internal/transport"
)

type State int

const (
	Idle State = iota
	RunningA
	RunningB
	Reporting
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RunningA:
		return "running_a"
	case RunningB:
		return "running_b"
	case Reporting:
		return "reporting"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Benchmark runs one transport to completion. *runner.Runner implements it.
type Benchmark interface {
	Run(ctx context.Context, adapter transport.Adapter) (*runner.Result, error)
}

// TransportReport is the reduced outcome of one transport run. Latency is nil
// when the run produced no samples; Error then says why.
type TransportReport struct {
	Name    string         `json:"name"`
	Result  *runner.Result `json:"result,omitempty"`
	Latency *stats.Summary `json:"latency,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type Report struct {
	Timestamp  time.Time         `json:"timestamp"`
	Config     runner.Config     `json:"config"`
	Transports []TransportReport `json:"transports"`
	Comparison *Comparison       `json:"comparison,omitempty"`
}

// Reporter drives the transports strictly one after the other and compares
// the results.
type Reporter struct {
	Bench  Benchmark
	Config runner.Config
	// OnState is called on every state transition, from the Run goroutine.
	OnState func(State)

	mu    sync.Mutex
	state State
}

func NewReporter(bench Benchmark, cfg runner.Config) *Reporter {
	return &Reporter{Bench: bench, Config: cfg}
}

func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reporter) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	log.WithField("state", s).Debug("reporter state")
	if r.OnState != nil {
		r.OnState(s)
	}
}

// Run benchmarks a, then b, and returns the comparison. b may be nil for a
// single transport run. On error the partial report is still returned and
// the reporter ends in Aborted.
func (r *Reporter) Run(ctx context.Context, a, b transport.Adapter) (*Report, error) {
	if r.State() != Idle {
		return nil, errors.Errorf("reporter already used (state %s)", r.State())
	}
	rep := &Report{Timestamp: time.Now(), Config: r.Config}

	r.setState(RunningA)
	resA, err := r.Bench.Run(ctx, a)
	if resA != nil {
		rep.Transports = append(rep.Transports, Summarize(resA))
	}
	if err != nil {
		r.setState(Aborted)
		return rep, errors.Wrapf(err, "benchmark %s", a.Name())
	}

	if b != nil {
		r.setState(RunningB)
		resB, err := r.Bench.Run(ctx, b)
		if resB != nil {
			rep.Transports = append(rep.Transports, Summarize(resB))
		}
		if err != nil {
			r.setState(Aborted)
			return rep, errors.Wrapf(err, "benchmark %s", b.Name())
		}
	}

	r.setState(Reporting)
	if len(rep.Transports) == 2 {
		cmp, err := Compare(rep.Transports[0], rep.Transports[1])
		if err != nil {
			log.WithError(err).Warn("comparison skipped")
		} else {
			rep.Comparison = cmp
		}
	}
	r.setState(Done)
	return rep, nil
}

func Summarize(res *runner.Result) TransportReport {
	tr := TransportReport{Name: res.Transport, Result: res}
	summary, err := stats.Summarize(res.Latencies())
	if err != nil {
		tr.Error = err.Error()
		return tr
	}
	tr.Latency = &summary
	return tr
}
