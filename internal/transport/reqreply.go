package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"echobench/internal/message"
)

// StatusError is a non-2xx answer from the echo endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// RequestReplyAdapter performs one HTTP POST per request. The exchange
// itself correlates request and response; the echoed body still carries the
// id so both transports share the recorder path.
type RequestReplyAdapter struct {
	opts   RequestReplyOptions
	target string
	client *http.Client
	sink   *eventSink

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closing   bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewRequestReplyAdapter(opts RequestReplyOptions) *RequestReplyAdapter {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxIdleConns > 0 {
		t.MaxIdleConns = opts.MaxIdleConns
		t.MaxConnsPerHost = opts.MaxIdleConns
		t.MaxIdleConnsPerHost = opts.MaxIdleConns
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RequestReplyAdapter{
		opts:   opts,
		target: strings.TrimRight(opts.URL, "/") + opts.Path,
		client: &http.Client{Transport: t},
		sink:   newEventSink(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (a *RequestReplyAdapter) Name() string { return "HTTP" }

func (a *RequestReplyAdapter) OnResponse(sink chan<- Event) { a.sink.register(sink) }

// Connect probes the endpoint with a TCP dial so an unreachable server fails
// the run up front instead of as a flood of per-request errors.
func (a *RequestReplyAdapter) Connect(ctx context.Context) error {
	if a.sink.closed() {
		return ErrClosed
	}
	u, err := url.Parse(a.opts.URL)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", a.opts.URL)
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return errors.Wrapf(err, "dialing %s", host)
	}
	return conn.Close()
}

func (a *RequestReplyAdapter) Send(req message.Request) {
	body, err := message.Encode(req)
	if err != nil {
		go a.fail(req.ID, err)
		return
	}
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()
	go func() {
		defer a.wg.Done()
		a.exchange(req.ID, body)
	}()
}

func (a *RequestReplyAdapter) exchange(id uint64, body []byte) {
	httpReq, err := http.NewRequestWithContext(a.ctx, http.MethodPost, a.target, bytes.NewReader(body))
	if err != nil {
		a.fail(id, errors.Wrap(err, "building request"))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	received := time.Now()
	if err != nil {
		a.fail(id, errors.Wrapf(err, "posting to %s", a.target))
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.fail(id, &StatusError{Code: resp.StatusCode})
		return
	}
	if err != nil {
		a.fail(id, errors.Wrap(err, "reading response"))
		return
	}
	a.sink.deliver(Event{ID: id, HasID: true, Received: received, Body: data})
}

func (a *RequestReplyAdapter) fail(id uint64, err error) {
	a.sink.deliver(Event{ID: id, HasID: true, Received: time.Now(), Err: err})
}

// Close aborts exchanges still in flight and waits for their goroutines.
func (a *RequestReplyAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closing = true
		a.mu.Unlock()
		a.sink.close()
		a.cancel()
		a.wg.Wait()
		a.client.CloseIdleConnections()
	})
	return nil
}
