package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"echobench/internal/echo"
	"echobench/internal/metrics"
	"echobench/internal/report"
	"echobench/internal/runner"
	"echobench/internal/storage"
	"echobench/internal/transport"
)

const (
	OnlyPubSub       = "pubsub"
	OnlyRequestReply = "reqreply"
)

// Options are the run settings that sit outside runner.Config.
type Options struct {
	// Only restricts the run to one transport: OnlyPubSub or OnlyRequestReply.
	Only string `mapstructure:"only"`
	// SelfEcho starts in-process echo collaborators and points both
	// transports at them.
	SelfEcho     bool   `mapstructure:"self_echo"`
	OutPrefix    string `mapstructure:"out"`
	Distribution bool   `mapstructure:"distribution"`
	// HistoryPath is the bbolt history file. Empty disables history.
	HistoryPath string `mapstructure:"history"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func (o Options) Validate() error {
	switch o.Only {
	case "", OnlyPubSub, OnlyRequestReply:
		return nil
	default:
		return errors.Errorf("--only must be %q or %q, got %q", OnlyPubSub, OnlyRequestReply, o.Only)
	}
}

// Session owns everything one comparison needs: adapters, the reporter,
// optional self-echo collaborators and the metrics collector.
type Session struct {
	Cfg      runner.Config
	Opts     Options
	Updates  runner.StatsUpdateChan
	Reporter *report.Reporter

	collector *metrics.Collector
	adapters  []transport.Adapter
	closers   []func()
}

func NewSession(cfg runner.Config, opts Options) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		Opts:    opts,
		Updates: make(runner.StatsUpdateChan, 100),
	}

	if opts.SelfEcho {
		if err := s.startSelfEcho(&cfg); err != nil {
			s.Close()
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "invalid configuration")
	}
	s.Cfg = cfg

	r := runner.NewRunner(cfg, s.Updates)
	if opts.MetricsAddr != "" {
		s.collector = metrics.NewCollector()
		r.Observer = s.collector
	}
	s.Reporter = report.NewReporter(r, cfg)

	if opts.Only != OnlyRequestReply {
		broker, err := transport.NewBroker(cfg.Transport.PubSub)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.adapters = append(s.adapters, transport.NewPubSubAdapter(cfg.Transport.PubSub, broker))
	}
	if opts.Only != OnlyPubSub {
		s.adapters = append(s.adapters, transport.NewRequestReplyAdapter(cfg.Transport.RequestReply))
	}
	return s, nil
}

// startSelfEcho runs a memory-bus responder and a loopback HTTP echo server
// and rewrites cfg to target them.
func (s *Session) startSelfEcho(cfg *runner.Config) error {
	bus := transport.NewMemoryBus()
	ps := &cfg.Transport.PubSub
	responder := echo.NewResponder(transport.NewMemoryBroker(bus), echo.ResponderConfig{
		RequestTopic:  ps.RequestTopic,
		ResponseTopic: ps.ResponseTopic,
		QoS:           ps.QoS,
	})
	if err := responder.Start(context.Background()); err != nil {
		return errors.Wrap(err, "start self-echo responder")
	}
	s.closers = append(s.closers, func() { _ = responder.Close() })
	ps.Broker = transport.BrokerMemory
	ps.Bus = bus

	rr := &cfg.Transport.RequestReply
	server, addr, err := echo.Listen("127.0.0.1:0", echo.ServerConfig{Path: rr.Path})
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { _ = server.Close() })
	rr.URL = "http://" + addr.String()

	log.WithField("http", rr.URL).Info("self-echo collaborators running")
	return nil
}

// Run executes the comparison. Metrics are served for its duration when
// configured.
func (s *Session) Run(ctx context.Context) (*report.Report, error) {
	if s.collector != nil {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		s.collector.Serve(metricsCtx, s.Opts.MetricsAddr)
	}

	var b transport.Adapter
	if len(s.adapters) > 1 {
		b = s.adapters[1]
	}
	return s.Reporter.Run(ctx, s.adapters[0], b)
}

// Finish prints the report and writes the configured artifacts.
func (s *Session) Finish(w io.Writer, rep *report.Report) error {
	if err := report.WriteText(w, rep); err != nil {
		return err
	}

	if s.Opts.OutPrefix != "" {
		paths, err := report.Export(rep, s.Opts.OutPrefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nreports saved: %v\n", paths)
	}
	if s.Opts.Distribution {
		prefix := s.Opts.OutPrefix
		if prefix == "" {
			prefix = "echobench"
		}
		paths, err := report.ExportDistributions(rep, prefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "distributions saved: %v\n", paths)
	}
	if s.Opts.HistoryPath != "" {
		if err := saveHistory(s.Opts.HistoryPath, rep); err != nil {
			log.WithError(err).Warn("run not saved to history")
		}
	}
	return nil
}

func saveHistory(path string, rep *report.Report) error {
	store, err := storage.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	item, err := store.Save(rep.HistoryItem())
	if err != nil {
		return err
	}
	log.WithField("id", item.ID).Debug("run saved to history")
	return nil
}

func (s *Session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
