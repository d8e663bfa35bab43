package runner

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echobench/internal/message"
	"echobench/internal/stats"
	"echobench/internal/transport"
)

// fakeAdapter echoes every request after a fixed delay.
type fakeAdapter struct {
	delay time.Duration
	// exchange mimics request/reply correlation by setting Event.ID
	exchange bool

	malformed  func(id uint64) bool
	sendErr    func(id uint64) bool
	drop       func(id uint64) bool
	duplicate  bool
	connectErr error

	mu          sync.Mutex
	sink        chan<- transport.Event
	closed      bool
	closeCalls  int
	inflight    int
	maxInflight int
	sent        []uint64
}

func (f *fakeAdapter) Name() string { return "FAKE" }

func (f *fakeAdapter) OnResponse(sink chan<- transport.Event) { f.sink = sink }

func (f *fakeAdapter) Connect(context.Context) error { return f.connectErr }

func (f *fakeAdapter) Send(req message.Request) {
	f.mu.Lock()
	f.sent = append(f.sent, req.ID)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	if f.drop != nil && f.drop(req.ID) {
		return
	}

	body, _ := message.Encode(req)
	if f.malformed != nil && f.malformed(req.ID) {
		body = []byte(`{"id":`)
	}
	ev := transport.Event{Body: body}
	if f.exchange {
		ev.ID, ev.HasID = req.ID, true
	}
	if f.sendErr != nil && f.sendErr(req.ID) {
		ev = transport.Event{ID: req.ID, HasID: true, Err: errors.New("rejected")}
	}

	time.AfterFunc(f.delay, func() {
		f.mu.Lock()
		f.inflight--
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return
		}
		ev.Received = time.Now()
		f.sink <- ev
		if f.duplicate {
			f.sink <- ev
		}
	})
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	return nil
}

func testConfig(concurrency, total int) Config {
	cfg := DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.TotalMessages = total
	return cfg
}

func TestRunFixedDelay(t *testing.T) {
	fake := &fakeAdapter{delay: 5 * time.Millisecond}
	res, err := NewRunner(testConfig(10, 1000), nil).Run(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Completed)
	assert.Equal(t, 1000, res.Sent)
	assert.Len(t, res.Samples, 1000)
	assert.LessOrEqual(t, fake.maxInflight, 10)
	assert.LessOrEqual(t, res.PeakInFlight, 10)
	assert.Equal(t, 1, fake.closeCalls)

	for i, id := range fake.sent {
		require.Equal(t, uint64(i), id, "ids are dispatched in increasing order")
	}

	s, err := stats.Summarize(res.Latencies())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.Avg, 5.0)
	assert.Less(t, s.Avg, 30.0)

	// closed loop: at most concurrency/delay requests per second
	assert.LessOrEqual(t, res.Throughput, 2100.0)
	assert.Greater(t, res.Throughput, 200.0)
}

func TestRunMalformedResponsesStillComplete(t *testing.T) {
	fake := &fakeAdapter{
		delay:     time.Millisecond,
		malformed: func(id uint64) bool { return id%10 == 0 },
	}
	res, err := NewRunner(testConfig(10, 1000), nil).Run(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Completed)
	assert.Len(t, res.Samples, 900)
	assert.Equal(t, 100, res.Counts.ParseErrors)

	s, err := stats.Summarize(res.Latencies())
	require.NoError(t, err)
	assert.Equal(t, 900, s.Count)
}

func TestRunRequestReplyCorrelation(t *testing.T) {
	fake := &fakeAdapter{
		delay:     time.Millisecond,
		exchange:  true,
		malformed: func(id uint64) bool { return id%4 == 0 },
	}
	res, err := NewRunner(testConfig(5, 100), nil).Run(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, 100, res.Completed)
	assert.Len(t, res.Samples, 75)
	assert.Zero(t, res.Counts.CorrelationMisses)
}

func TestRunSendErrorsStillComplete(t *testing.T) {
	fake := &fakeAdapter{
		delay:   time.Millisecond,
		sendErr: func(id uint64) bool { return id%5 == 0 },
	}
	res, err := NewRunner(testConfig(4, 50), nil).Run(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, 50, res.Completed)
	assert.Len(t, res.Samples, 40)
	assert.Equal(t, 10, res.Counts.SendErrors)
}

func TestRunDuplicatesAreCountedNotCompleted(t *testing.T) {
	fake := &fakeAdapter{delay: time.Millisecond, duplicate: true}
	res, err := NewRunner(testConfig(4, 40), nil).Run(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, 40, res.Completed)
	assert.Len(t, res.Samples, 40)
	assert.Equal(t, 40, res.Sent)
	assert.Positive(t, res.Counts.CorrelationMisses)
}

func TestRunRequestTimeout(t *testing.T) {
	cfg := testConfig(10, 100)
	cfg.RequestTimeout = 30 * time.Millisecond
	fake := &fakeAdapter{
		delay: time.Millisecond,
		drop:  func(id uint64) bool { return id%10 == 0 },
	}
	res, err := NewRunner(cfg, nil).Run(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, 100, res.Completed)
	assert.Len(t, res.Samples, 90)
	assert.Equal(t, 10, res.Counts.Timeouts)
}

func TestRunConnectionError(t *testing.T) {
	fake := &fakeAdapter{connectErr: errors.New("connection refused")}
	_, err := NewRunner(testConfig(1, 1), nil).Run(context.Background(), fake)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "FAKE", connErr.Transport)
	assert.Empty(t, fake.sent)
	assert.Equal(t, 1, fake.closeCalls)
}

func TestRunCancel(t *testing.T) {
	fake := &fakeAdapter{drop: func(uint64) bool { return true }}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := NewRunner(testConfig(3, 10), nil).Run(ctx, fake)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, res.Sent)
	assert.Zero(t, res.Completed)
}

func TestRunPublishesFinalSnapshot(t *testing.T) {
	updates := make(StatsUpdateChan, 100)
	cfg := testConfig(2, 20)
	cfg.UpdateInterval = time.Millisecond
	_, err := NewRunner(cfg, updates).Run(context.Background(), &fakeAdapter{delay: time.Millisecond})
	require.NoError(t, err)

	var last StatsSnapshot
	for len(updates) > 0 {
		last = <-updates
	}
	assert.True(t, last.Done)
	assert.Equal(t, 20, last.Completed)
	assert.Equal(t, 20, last.Samples)
	assert.Equal(t, "FAKE", last.Transport)
}

type countingObserver struct {
	samples, failures, misses int
}

func (o *countingObserver) ObserveSample(string, float64)      { o.samples++ }
func (o *countingObserver) ObserveFailure(string, FailureKind) { o.failures++ }
func (o *countingObserver) ObserveMiss(string)                 { o.misses++ }

func TestRunReportsToObserver(t *testing.T) {
	obs := &countingObserver{}
	r := NewRunner(testConfig(2, 10), nil)
	r.Observer = obs
	_, err := r.Run(context.Background(), &fakeAdapter{
		delay:     time.Millisecond,
		malformed: func(id uint64) bool { return id == 3 },
	})
	require.NoError(t, err)

	assert.Equal(t, 9, obs.samples)
	assert.Equal(t, 1, obs.failures)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"zero concurrency": func(c *Config) { c.Concurrency = 0 },
		"negative size":    func(c *Config) { c.MessageSize = -1 },
		"zero messages":    func(c *Config) { c.TotalMessages = 0 },
		"bad clock":        func(c *Config) { c.LatencyClock = "sundial" },
		"bad qos":          func(c *Config) { c.Transport.PubSub.QoS = 7 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResultJSONOmitsHistogram(t *testing.T) {
	b, err := json.Marshal(&Result{Transport: "X", Histogram: stats.NewHistogram()})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "Histogram")
}
