package runner

import (
	"sort"
	"time"

	"echobench/internal/message"
	"echobench/internal/transport"
)

type OutcomeKind int

const (
	// OutcomeSample resolved a request with a latency sample.
	OutcomeSample OutcomeKind = iota
	// OutcomeFailure resolved a request without a sample.
	OutcomeFailure
	// OutcomeMiss resolved nothing: the id matches no outstanding request.
	OutcomeMiss
)

type Outcome struct {
	Kind      OutcomeKind
	Failure   FailureKind
	RequestID uint64
	// HasID is false when the request id could not be determined, which
	// only happens for unparseable pub/sub bodies.
	HasID  bool
	Sample Sample
	Err    error
}

// Completed reports whether the outcome counts towards the window.
func (o Outcome) Completed() bool {
	return o.Kind != OutcomeMiss
}

// Recorder matches responses to outstanding requests by the id carried in
// the payload and records round-trip latencies.
type Recorder struct {
	clock       string
	outstanding map[uint64]time.Time
	samples     []Sample
	counts      Counts

	// parse failures that could not be attributed to a request; each one
	// absorbs one later timeout so no request resolves twice
	unattributed int
}

func NewRecorder(clock string, capacity int) *Recorder {
	return &Recorder{
		clock:       clock,
		outstanding: make(map[uint64]time.Time, capacity),
		samples:     make([]Sample, 0, capacity),
	}
}

func (r *Recorder) Track(req message.Request) {
	r.outstanding[req.ID] = req.SentAt
}

func (r *Recorder) Handle(ev transport.Event) Outcome {
	if ev.Err != nil {
		if !r.resolve(ev.ID) {
			return r.miss(ev.ID, ev.Err)
		}
		r.counts.SendErrors++
		return Outcome{Kind: OutcomeFailure, Failure: SendError, RequestID: ev.ID, HasID: true, Err: ev.Err}
	}

	env, err := message.Decode(ev.Body)
	if err != nil {
		if ev.HasID {
			if !r.resolve(ev.ID) {
				return r.miss(ev.ID, err)
			}
		} else {
			r.unattributed++
		}
		r.counts.ParseErrors++
		return Outcome{Kind: OutcomeFailure, Failure: ParseError, RequestID: ev.ID, HasID: ev.HasID, Err: err}
	}

	if ev.HasID && env.ID != ev.ID {
		// the exchange is over either way; the body belongs to someone else
		if !r.resolve(ev.ID) {
			return r.miss(env.ID, nil)
		}
		r.counts.CorrelationMisses++
		return Outcome{Kind: OutcomeFailure, Failure: CorrelationMiss, RequestID: ev.ID, HasID: true}
	}

	sentAt, ok := r.outstanding[env.ID]
	if !ok {
		return r.miss(env.ID, nil)
	}
	delete(r.outstanding, env.ID)

	s := Sample{RequestID: env.ID, LatencyMillis: r.latency(sentAt, ev.Received, env)}
	if s.LatencyMillis < 0 {
		r.counts.NegativeLatencies++
	}
	r.samples = append(r.samples, s)
	return Outcome{Kind: OutcomeSample, RequestID: env.ID, HasID: true, Sample: s}
}

// Expire force-completes requests outstanding for at least timeout and
// returns their ids in ascending order.
func (r *Recorder) Expire(now time.Time, timeout time.Duration) []uint64 {
	var expired []uint64
	for id, sentAt := range r.outstanding {
		if now.Sub(sentAt) >= timeout {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })

	out := expired[:0]
	for _, id := range expired {
		delete(r.outstanding, id)
		if r.unattributed > 0 {
			r.unattributed--
			continue
		}
		r.counts.Timeouts++
		out = append(out, id)
	}
	return out
}

func (r *Recorder) latency(sentAt, received time.Time, env message.Envelope) float64 {
	if r.clock == ClockWire {
		return float64(received.UnixMilli() - env.Timestamp)
	}
	return float64(received.Sub(sentAt)) / float64(time.Millisecond)
}

func (r *Recorder) resolve(id uint64) bool {
	if _, ok := r.outstanding[id]; !ok {
		return false
	}
	delete(r.outstanding, id)
	return true
}

func (r *Recorder) miss(id uint64, err error) Outcome {
	r.counts.CorrelationMisses++
	return Outcome{Kind: OutcomeMiss, Failure: CorrelationMiss, RequestID: id, HasID: true, Err: err}
}

func (r *Recorder) Samples() []Sample { return r.samples }
func (r *Recorder) Counts() Counts    { return r.counts }
func (r *Recorder) Outstanding() int  { return len(r.outstanding) }
