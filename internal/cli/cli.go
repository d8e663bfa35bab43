package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"echobench/internal/runner"
)

// Start runs the comparison headless, printing a progress line to stderr
// and the report to stdout.
func Start(ctx context.Context, cfg runner.Config, opts Options) error {
	s, err := NewSession(cfg, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	printHeader(os.Stdout, s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor(os.Stderr, s.Updates, ctx.Done())
	}()

	rep, runErr := s.Run(ctx)
	close(s.Updates)
	<-done

	if rep != nil && len(rep.Transports) > 0 {
		if err := s.Finish(os.Stdout, rep); err != nil {
			return err
		}
	}
	return runErr
}

func printHeader(w io.Writer, s *Session) {
	cfg := s.Cfg
	fmt.Fprintf(w, "\nECHOBENCH TRANSPORT COMPARISON\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 70))
	if s.Opts.Only != OnlyRequestReply {
		ps := cfg.Transport.PubSub
		fmt.Fprintf(w, "Pub/sub    : %s %s (qos %d)\n", ps.Broker, ps.URL, ps.QoS)
	}
	if s.Opts.Only != OnlyPubSub {
		rr := cfg.Transport.RequestReply
		fmt.Fprintf(w, "Req/reply  : POST %s%s\n", rr.URL, rr.Path)
	}
	fmt.Fprintf(w, "Messages   : %d x %d bytes, concurrency %d\n", cfg.TotalMessages, cfg.MessageSize, cfg.Concurrency)
	if cfg.RequestTimeout > 0 {
		fmt.Fprintf(w, "Timeout    : %s per request\n", cfg.RequestTimeout)
	}
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 70))
}

// monitor renders snapshots until updates is closed or stop fires.
func monitor(w io.Writer, updates runner.StatsUpdateChan, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			fmt.Fprintln(w)
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			fmt.Fprint(w, progressLine(snap))
			if snap.Done {
				fmt.Fprintln(w)
			}
		}
	}
}

func progressLine(snap runner.StatsSnapshot) string {
	pct := 0.0
	if snap.Total > 0 {
		pct = float64(snap.Completed) / float64(snap.Total)
	}
	return fmt.Sprintf("\r%-5s %s %3.0f%% | %d/%d | Inf: %3d | Avg: %6.2fms | P99: %6.2fms | Fail: %d | %s",
		snap.Transport,
		progressBar(pct, 20), pct*100,
		snap.Completed, snap.Total,
		snap.Inflight,
		snap.AvgMs, snap.P99Ms,
		snap.Failed,
		snap.Elapsed.Round(time.Millisecond),
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
