package echo

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"echobench/internal/message"
	"echobench/internal/transport"
)

type ResponderConfig struct {
	RequestTopic  string `mapstructure:"request_topic"`
	ResponseTopic string `mapstructure:"response_topic"`
	QoS           byte   `mapstructure:"qos"`
	Behavior      `mapstructure:",squash"`
}

// Responder republishes every request it receives on the response topic.
type Responder struct {
	broker transport.Broker
	cfg    ResponderConfig
}

func NewResponder(broker transport.Broker, cfg ResponderConfig) *Responder {
	if cfg.RequestTopic == "" {
		cfg.RequestTopic = transport.DefaultRequestTopic
	}
	if cfg.ResponseTopic == "" {
		cfg.ResponseTopic = transport.DefaultResponseTopic
	}
	return &Responder{broker: broker, cfg: cfg}
}

func (r *Responder) Start(ctx context.Context) error {
	if err := r.broker.Connect(ctx); err != nil {
		return err
	}
	if err := r.broker.Subscribe(ctx, r.cfg.RequestTopic, r.cfg.QoS, r.handle); err != nil {
		_ = r.broker.Close()
		return err
	}
	log.Infof("%s echo responder subscribed to %s", r.broker.Name(), r.cfg.RequestTopic)
	return nil
}

func (r *Responder) handle(payload []byte) {
	env, err := message.Decode(payload)
	if err != nil {
		log.WithError(err).Warn("dropping malformed request")
		return
	}
	body, err := r.cfg.reply(env)
	if err != nil {
		log.WithError(err).Error("dropping request")
		return
	}
	publish := func() {
		r.broker.Publish(r.cfg.ResponseTopic, r.cfg.QoS, body, func(err error) {
			if err != nil {
				log.WithError(err).WithField("request_id", env.ID).Warn("failed to publish echo")
			}
		})
	}
	if r.cfg.Delay > 0 {
		time.AfterFunc(r.cfg.Delay, publish)
		return
	}
	publish()
}

func (r *Responder) Close() error {
	return r.broker.Close()
}
