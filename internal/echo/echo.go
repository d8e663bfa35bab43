// Package echo implements the echo collaborators the harness benchmarks
// against: an HTTP endpoint and a pub/sub responder. Both return the wire
// payload unmodified, optionally after an artificial delay.
package echo

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"echobench/internal/message"
)

// Behavior tunes an echo collaborator for testing.
type Behavior struct {
	// Delay is applied before every reply.
	Delay time.Duration `mapstructure:"delay"`
	// MalformedEvery replaces the reply of every request whose id is a
	// multiple of it with an unparseable body. Zero disables.
	MalformedEvery uint64 `mapstructure:"malformed_every"`

	// encode defaults to json.Marshal.
	encode func(any) ([]byte, error)
}

var malformedBody = []byte(`{"id": oops`)

func (b Behavior) reply(env message.Envelope) ([]byte, error) {
	if b.MalformedEvery > 0 && env.ID%b.MalformedEvery == 0 {
		return malformedBody, nil
	}
	encode := b.encode
	if encode == nil {
		encode = json.Marshal
	}
	out, err := encode(env)
	if err != nil {
		return nil, errors.Wrapf(err, "encode echo for request %d", env.ID)
	}
	return out, nil
}
