package runner

// Window keeps a constant number of requests in flight: it fills the window
// on Start and dispatches exactly one new request per completion until all
// requests are sent. It is not safe for concurrent use; dispatch must not
// call back into the window.
type Window struct {
	concurrency int
	total       int
	dispatch    func(id uint64)

	sent      int
	completed int
	peak      int
	done      bool
}

func NewWindow(concurrency, total int, dispatch func(id uint64)) *Window {
	return &Window{
		concurrency: concurrency,
		total:       total,
		dispatch:    dispatch,
	}
}

func (w *Window) Start() {
	n := w.concurrency
	if w.total < n {
		n = w.total
	}
	for i := 0; i < n; i++ {
		w.next()
	}
}

// OnCompletion records one completion, successful or not, and refills the
// window. It returns true exactly once: on the completion that brings the
// count to the total. Later calls are ignored.
func (w *Window) OnCompletion() bool {
	if w.done {
		return false
	}
	w.completed++
	if w.sent < w.total {
		w.next()
	}
	if w.completed >= w.total {
		w.done = true
		return true
	}
	return false
}

func (w *Window) next() {
	id := uint64(w.sent)
	w.sent++
	if inflight := w.InFlight(); inflight > w.peak {
		w.peak = inflight
	}
	w.dispatch(id)
}

func (w *Window) Sent() int      { return w.sent }
func (w *Window) Completed() int { return w.completed }
func (w *Window) Done() bool     { return w.done }
func (w *Window) Peak() int      { return w.peak }

func (w *Window) InFlight() int {
	if n := w.sent - w.completed; n > 0 {
		return n
	}
	return 0
}
