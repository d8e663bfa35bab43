package message

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformed is returned by Decode when a body is not a valid wire payload.
var ErrMalformed = errors.New("malformed payload")

// Request is a dispatched benchmark request. IDs are assigned by increment
// from zero and are unique within a run.
type Request struct {
	ID     uint64
	SentAt time.Time
	Data   []byte
}

// Envelope is the wire payload shared by both transports. The echo side
// returns it unmodified.
type Envelope struct {
	ID        uint64 `json:"id"`
	Timestamp int64  `json:"timestamp"` // epoch millis
	Data      string `json:"data"`
}

// Generate returns exactly size bytes of synthetic payload.
func Generate(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	return bytes.Repeat([]byte{'x'}, size)
}

// Encode serializes a request to the wire format.
func Encode(req Request) ([]byte, error) {
	b, err := json.Marshal(Envelope{
		ID:        req.ID,
		Timestamp: req.SentAt.UnixMilli(),
		Data:      string(req.Data),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "encoding request %d", req.ID)
	}
	return b, nil
}

// Decode parses a wire payload. Both id and timestamp must be present,
// otherwise an empty object would silently match request 0.
func Decode(body []byte) (Envelope, error) {
	var raw struct {
		ID        *uint64 `json:"id"`
		Timestamp *int64  `json:"timestamp"`
		Data      string  `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if raw.ID == nil {
		return Envelope{}, errors.Wrap(ErrMalformed, "missing id")
	}
	if raw.Timestamp == nil {
		return Envelope{}, errors.Wrap(ErrMalformed, "missing timestamp")
	}
	return Envelope{ID: *raw.ID, Timestamp: *raw.Timestamp, Data: raw.Data}, nil
}
