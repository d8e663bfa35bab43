package runner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"echobench/internal/message"
	"echobench/internal/stats"
	"echobench/internal/transport"
)

type Runner struct {
	Cfg      Config
	Observer Observer

	// Event Channel
	Updates StatsUpdateChan
}

func NewRunner(cfg Config, updates StatsUpdateChan) *Runner {
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	return &Runner{
		Cfg:      cfg,
		Observer: nopObserver{},
		Updates:  updates,
	}
}

// run is the state of one active run. It is owned by the goroutine
// executing Run and never shared.
type run struct {
	name     string
	logger   *log.Entry
	window   *Window
	recorder *Recorder
	live     *stats.Histogram
	start    time.Time
}

// Run benchmarks one transport to completion. Only a failure to connect
// aborts a run; every per-request failure still counts as a completion.
func (r *Runner) Run(ctx context.Context, adapter transport.Adapter) (*Result, error) {
	cfg := r.Cfg
	rs := &run{
		name:     adapter.Name(),
		logger:   log.WithField("transport", adapter.Name()),
		recorder: NewRecorder(cfg.LatencyClock, cfg.TotalMessages),
		live:     stats.NewHistogram(),
	}

	// every in-flight request yields about one event; headroom covers
	// duplicates and strays
	events := make(chan transport.Event, 2*cfg.Concurrency+64)
	adapter.OnResponse(events)

	if err := r.connect(ctx, adapter); err != nil {
		_ = adapter.Close()
		return nil, &ConnectionError{Transport: rs.name, Err: err}
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			rs.logger.WithError(err).Warn("failed to close transport")
		}
	}()

	data := message.Generate(cfg.MessageSize)
	rs.window = NewWindow(cfg.Concurrency, cfg.TotalMessages, func(id uint64) {
		req := message.Request{ID: id, SentAt: time.Now(), Data: data}
		rs.recorder.Track(req)
		adapter.Send(req)
	})

	var sweep <-chan time.Time
	if cfg.RequestTimeout > 0 {
		t := time.NewTicker(sweepInterval(cfg.RequestTimeout))
		defer t.Stop()
		sweep = t.C
	}
	var tick <-chan time.Time
	if cfg.UpdateInterval > 0 {
		t := time.NewTicker(cfg.UpdateInterval)
		defer t.Stop()
		tick = t.C
	}

	rs.logger.WithFields(log.Fields{
		"concurrency": cfg.Concurrency,
		"messages":    cfg.TotalMessages,
		"size":        cfg.MessageSize,
	}).Info("starting run")

	rs.start = time.Now()
	rs.window.Start()

	for done := false; !done; {
		select {
		case <-ctx.Done():
			res := rs.result()
			r.sendUpdate(rs, true)
			return res, errors.Wrapf(ctx.Err(), "%s run interrupted after %d of %d", rs.name, res.Completed, cfg.TotalMessages)

		case ev := <-events:
			out := rs.recorder.Handle(ev)
			r.observe(rs, out)
			if out.Completed() && rs.window.OnCompletion() {
				done = true
			}

		case now := <-sweep:
			for _, id := range rs.recorder.Expire(now, cfg.RequestTimeout) {
				r.observe(rs, Outcome{Kind: OutcomeFailure, Failure: Timeout, RequestID: id, HasID: true})
				if rs.window.OnCompletion() {
					done = true
				}
			}

		case <-tick:
			r.sendUpdate(rs, false)
		}
	}

	res := rs.result()
	r.sendUpdate(rs, true)

	entry := rs.logger.WithFields(log.Fields{
		"completed":  res.Completed,
		"samples":    len(res.Samples),
		"failed":     res.Counts.Failed(),
		"elapsed":    res.Elapsed.Round(time.Millisecond),
		"throughput": res.Throughput,
	})
	if res.Counts.CorrelationMisses > 0 {
		entry.WithField("correlation_misses", res.Counts.CorrelationMisses).Warn("run finished with uncorrelated responses")
	} else {
		entry.Info("run finished")
	}
	return res, nil
}

func (r *Runner) connect(ctx context.Context, adapter transport.Adapter) error {
	if r.Cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Cfg.ConnectTimeout)
		defer cancel()
	}
	return adapter.Connect(ctx)
}

func (r *Runner) observe(rs *run, out Outcome) {
	switch out.Kind {
	case OutcomeSample:
		rs.live.RecordMillis(out.Sample.LatencyMillis)
		r.Observer.ObserveSample(rs.name, out.Sample.LatencyMillis)
		if out.Sample.LatencyMillis < 0 {
			rs.logger.WithFields(log.Fields{
				"request_id": out.RequestID,
				"latency_ms": out.Sample.LatencyMillis,
			}).Warn("negative latency, check clocks")
		}

	case OutcomeFailure:
		r.Observer.ObserveFailure(rs.name, out.Failure)
		entry := rs.logger.WithField("kind", out.Failure.String())
		if out.HasID {
			entry = entry.WithField("request_id", out.RequestID)
		}
		if out.Err != nil {
			entry = entry.WithError(out.Err)
		}
		entry.Warn("request completed without a sample")

	case OutcomeMiss:
		r.Observer.ObserveMiss(rs.name)
		entry := rs.logger.WithFields(log.Fields{
			"kind":       out.Failure.String(),
			"request_id": out.RequestID,
		})
		if out.Err != nil {
			entry = entry.WithError(out.Err)
		}
		entry.Debug("ignoring response for unknown request")
	}
}

func (r *Runner) sendUpdate(rs *run, done bool) {
	counts := rs.recorder.Counts()
	s := StatsSnapshot{
		Transport: rs.name,
		Total:     r.Cfg.TotalMessages,
		Sent:      rs.window.Sent(),
		Completed: rs.window.Completed(),
		Samples:   len(rs.recorder.Samples()),
		Failed:    counts.Failed(),
		Misses:    counts.CorrelationMisses,
		Inflight:  rs.window.InFlight(),
		Elapsed:   time.Since(rs.start),
		AvgMs:     rs.live.MeanMillis(),
		P50Ms:     rs.live.QuantileMillis(50),
		P99Ms:     rs.live.QuantileMillis(99),
		Done:      done,
	}

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

func (rs *run) result() *Result {
	elapsed := time.Since(rs.start)
	res := &Result{
		Transport:    rs.name,
		Samples:      rs.recorder.Samples(),
		Sent:         rs.window.Sent(),
		Completed:    rs.window.Completed(),
		PeakInFlight: rs.window.Peak(),
		Counts:       rs.recorder.Counts(),
		Elapsed:      elapsed,
		Histogram:    rs.live,
	}
	res.Throughput = stats.Throughput(res.Completed, res.ElapsedMillis())
	return res
}

func sweepInterval(timeout time.Duration) time.Duration {
	d := timeout / 4
	if d < time.Millisecond {
		d = time.Millisecond
	}
	if d > time.Second {
		d = time.Second
	}
	return d
}
