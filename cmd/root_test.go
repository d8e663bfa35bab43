package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echobench/internal/cli"
	"echobench/internal/runner"
	"echobench/internal/storage"
)

func TestLoadConfigLayers(t *testing.T) {
	cfg, opts, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, runner.DefaultConfig(), cfg)
	historyPath, _ := storage.DefaultPath()
	assert.Equal(t, cli.Options{HistoryPath: historyPath}, opts)

	file := filepath.Join(t.TempDir(), "echobench.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
message_size: 256
concurrency: 4
transport:
  reqreply:
    path: /echo
`), 0644))
	cfgFile = file
	defer func() { cfgFile = "" }()
	t.Setenv("ECHOBENCH_LATENCY_CLOCK", "wire")
	initConfig()

	flags := map[string]string{
		"concurrency":     "32",
		"request-timeout": "2s",
		"broker":          "nats",
		"broker-url":      "nats://localhost:4222",
		"qos":             "0",
		"request-topic":   "a/req",
		"response-topic":  "a/resp",
		"http-url":        "http://echo:3001",
		"only":            "pubsub",
		"out":             "run",
		"no-history":      "true",
		"metrics-addr":    ":9100",
	}
	for name, value := range flags {
		require.NoError(t, rootCmd.Flags().Set(name, value), name)
	}

	cfg, opts, err = loadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 32, cfg.Concurrency, "flag overrides config file")
	assert.Equal(t, 256, cfg.MessageSize, "config file overrides default")
	assert.Equal(t, 1000, cfg.TotalMessages)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, runner.ClockWire, cfg.LatencyClock)

	ps := cfg.Transport.PubSub
	assert.Equal(t, "nats", ps.Broker)
	assert.Equal(t, "nats://localhost:4222", ps.URL)
	assert.Equal(t, byte(0), ps.QoS)
	assert.Equal(t, "a/req", ps.RequestTopic)
	assert.Equal(t, "a/resp", ps.ResponseTopic)
	assert.Equal(t, "benchmark_", ps.ClientIDPrefix)

	rr := cfg.Transport.RequestReply
	assert.Equal(t, "http://echo:3001", rr.URL)
	assert.Equal(t, "/echo", rr.Path)
	assert.Equal(t, 2000, rr.MaxIdleConns)

	assert.Equal(t, cli.Options{Only: cli.OnlyPubSub, OutPrefix: "run", MetricsAddr: ":9100"}, opts)
}
