package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"echobench/internal/banner"
	"echobench/internal/cli"
	"echobench/internal/runner"
	"echobench/internal/storage"
	"echobench/internal/tui/app"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "echobench",
	Short: "echobench - pub/sub vs request/reply latency comparison",
	Long: `
echobench sends the same stream of echo requests over a pub/sub broker
(MQTT or NATS) and over HTTP request/reply, then compares latency
percentiles and throughput.

Start the echo collaborators with "echobench echo http" and
"echobench echo pubsub", or pass --self-echo to run against in-process
ones.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(viper.GetString("log_level"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, opts, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !viper.GetBool("tui") {
			return cli.Start(ctx, cfg, opts)
		}
		return runTUI(ctx, cfg, opts)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(echoCmd, historyCmd)

	defaults := runner.DefaultConfig()
	historyPath, _ := storage.DefaultPath()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.echobench.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("history", historyPath, "history database path")
	bind(pf, "log_level", "log-level")
	bind(pf, "history", "history")

	f := rootCmd.Flags()
	f.IntP("concurrency", "c", defaults.Concurrency, "maximum requests in flight")
	f.IntP("size", "s", defaults.MessageSize, "payload data size in bytes")
	f.IntP("messages", "n", defaults.TotalMessages, "requests per transport")
	f.Duration("connect-timeout", defaults.ConnectTimeout, "transport connect timeout")
	f.Duration("request-timeout", defaults.RequestTimeout, "per-request timeout (0 waits forever)")
	f.String("latency-clock", defaults.LatencyClock, "latency send clock: monotonic or wire")
	f.Duration("update-interval", defaults.UpdateInterval, "progress refresh interval")

	ps := defaults.Transport.PubSub
	f.String("broker", ps.Broker, "pub/sub broker: mqtt, nats or memory")
	f.String("broker-url", ps.URL, "pub/sub broker URL")
	f.Uint8("qos", ps.QoS, "pub/sub QoS (MQTT only)")
	f.String("request-topic", ps.RequestTopic, "pub/sub request topic")
	f.String("response-topic", ps.ResponseTopic, "pub/sub response topic")

	rr := defaults.Transport.RequestReply
	f.String("http-url", rr.URL, "request/reply base URL")
	f.String("http-path", rr.Path, "request/reply echo path")

	f.String("only", "", "run a single transport: pubsub or reqreply")
	f.Bool("self-echo", false, "run against in-process echo collaborators")
	f.StringP("out", "o", "", "output prefix for <prefix>_report.json and per-transport CSVs")
	f.Bool("distribution", false, "write the hdr percentile distribution per transport")
	f.Bool("no-history", false, "do not record the run in the history database")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.Bool("tui", false, "show the interactive progress view")

	for key, flag := range map[string]string{
		"concurrency":                     "concurrency",
		"message_size":                    "size",
		"total_messages":                  "messages",
		"connect_timeout":                 "connect-timeout",
		"request_timeout":                 "request-timeout",
		"latency_clock":                   "latency-clock",
		"update_interval":                 "update-interval",
		"transport.pubsub.broker":         "broker",
		"transport.pubsub.url":            "broker-url",
		"transport.pubsub.qos":            "qos",
		"transport.pubsub.request_topic":  "request-topic",
		"transport.pubsub.response_topic": "response-topic",
		"transport.reqreply.url":          "http-url",
		"transport.reqreply.path":         "http-path",
		"only":                            "only",
		"self_echo":                       "self-echo",
		"out":                             "out",
		"distribution":                    "distribution",
		"no_history":                      "no-history",
		"metrics_addr":                    "metrics-addr",
		"tui":                             "tui",
	} {
		bind(f, key, flag)
	}

	viper.SetDefault("transport.pubsub.client_id_prefix", ps.ClientIDPrefix)
	viper.SetDefault("transport.reqreply.max_idle_conns", rr.MaxIdleConns)
}

func bind(flags *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(err)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".echobench")
		}
	}
	viper.SetEnvPrefix("ECHOBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.WithError(err).Warn("config file not loaded")
		}
		return
	}
	log.WithField("file", viper.ConfigFileUsed()).Debug("config file loaded")
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid --log-level")
	}
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(lvl)
	return nil
}

func loadConfig() (runner.Config, cli.Options, error) {
	cfg := runner.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, cli.Options{}, errors.Wrap(err, "decode configuration")
	}

	var opts cli.Options
	if err := viper.Unmarshal(&opts); err != nil {
		return cfg, opts, errors.Wrap(err, "decode options")
	}
	if viper.GetBool("no_history") {
		opts.HistoryPath = ""
	}
	return cfg, opts, nil
}

func runTUI(ctx context.Context, cfg runner.Config, opts cli.Options) error {
	s, err := cli.NewSession(cfg, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, runErr := app.Run(ctx, s)
	if rep != nil && len(rep.Transports) > 0 {
		if err := s.Finish(os.Stdout, rep); err != nil {
			return err
		}
	}
	return runErr
}
