package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"echobench/internal/echo"
	"echobench/internal/transport"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run an echo collaborator",
}

var echoHTTPCmd = &cobra.Command{
	Use:   "http",
	Short: "Run the HTTP echo server",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		port, _ := f.GetInt("port")
		path, _ := f.GetString("path")
		behavior, err := echoBehavior(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := echo.Start(echo.ServerConfig{Port: port, Path: path, Behavior: behavior})
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

var echoPubSubCmd = &cobra.Command{
	Use:   "pubsub",
	Short: "Run the pub/sub echo responder",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		opts := transport.DefaultOptions().PubSub
		opts.Broker, _ = f.GetString("broker")
		opts.URL, _ = f.GetString("broker-url")
		opts.QoS, _ = f.GetUint8("qos")
		opts.RequestTopic, _ = f.GetString("request-topic")
		opts.ResponseTopic, _ = f.GetString("response-topic")
		opts.ClientIDPrefix = "benchmark_echo_"

		behavior, err := echoBehavior(cmd)
		if err != nil {
			return err
		}
		broker, err := transport.NewBroker(opts)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		responder := echo.NewResponder(broker, echo.ResponderConfig{
			RequestTopic:  opts.RequestTopic,
			ResponseTopic: opts.ResponseTopic,
			QoS:           opts.QoS,
			Behavior:      behavior,
		})
		if err := responder.Start(connectCtx); err != nil {
			return err
		}
		<-ctx.Done()
		log.Info("stopping echo responder")
		return responder.Close()
	},
}

func echoBehavior(cmd *cobra.Command) (echo.Behavior, error) {
	delay, err := cmd.Flags().GetDuration("delay")
	if err != nil {
		return echo.Behavior{}, err
	}
	every, err := cmd.Flags().GetUint64("malformed-every")
	if err != nil {
		return echo.Behavior{}, err
	}
	return echo.Behavior{Delay: delay, MalformedEvery: every}, nil
}

func init() {
	echoCmd.AddCommand(echoHTTPCmd, echoPubSubCmd)

	pf := echoCmd.PersistentFlags()
	pf.Duration("delay", 0, "artificial delay before every reply")
	pf.Uint64("malformed-every", 0, "reply with an unparseable body to every Nth request id (0 disables)")

	echoHTTPCmd.Flags().IntP("port", "p", 3000, "port to listen on")
	echoHTTPCmd.Flags().String("path", "/benchmark", "echo path")

	ps := transport.DefaultOptions().PubSub
	f := echoPubSubCmd.Flags()
	f.String("broker", ps.Broker, "broker: mqtt or nats")
	f.String("broker-url", ps.URL, "broker URL")
	f.Uint8("qos", ps.QoS, "QoS (MQTT only)")
	f.String("request-topic", ps.RequestTopic, "topic to consume requests from")
	f.String("response-topic", ps.ResponseTopic, "topic to publish echoes to")
}
