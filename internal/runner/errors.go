package runner

import "fmt"

// FailureKind classifies a request that resolved without a latency sample,
// or a response that matched nothing.
type FailureKind int

const (
	SendError FailureKind = iota + 1
	ParseError
	Timeout
	CorrelationMiss
)

func (k FailureKind) String() string {
	switch k {
	case SendError:
		return "send_error"
	case ParseError:
		return "parse_error"
	case Timeout:
		return "timeout"
	case CorrelationMiss:
		return "correlation_miss"
	default:
		return "unknown"
	}
}

// ConnectionError means the transport was unreachable at start. It is the
// only fatal error of a run.
type ConnectionError struct {
	Transport string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting %s: %v", e.Transport, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Cause() error { return e.Err }

// Observer receives per-request outcomes as they are recorded.
type Observer interface {
	ObserveSample(transport string, latencyMillis float64)
	ObserveFailure(transport string, kind FailureKind)
	ObserveMiss(transport string)
}

type nopObserver struct{}

func (nopObserver) ObserveSample(string, float64)      {}
func (nopObserver) ObserveFailure(string, FailureKind) {}
func (nopObserver) ObserveMiss(string)                 {}
