package bridge

import (
	"io"
	"log"
	"time"

	"github.com/pkg/errors"
)

var errTest = errors.New("test error")

type fakeTimer struct {
	c       chan time.Time
	active  time.Duration
	arms    []time.Duration
	stopped bool
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func (f *fakeTimer) Arm(d time.Duration) {
	f.arms = append(f.arms, d)
	if d <= 0 {
		f.active = 0
		return
	}
	f.active = d
}

func (f *fakeTimer) Disarm() { f.active = 0 }

func (f *fakeTimer) Stop() {
	f.active = 0
	f.stopped = true
}

func (f *fakeTimer) fire() {
	select {
	case f.c <- time.Now():
	default:
	}
}

func (f *fakeTimer) count(d time.Duration) int {
	n := 0
	for _, a := range f.arms {
		if a == d {
			n++
		}
	}
	return n
}

type fakeConn struct {
	reports  chan interface{}
	done     chan struct{}
	closedCh chan struct{}
	watching bool
	watchErr error
	sent     []string
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reports:  make(chan interface{}, 16),
		done:     make(chan struct{}),
		closedCh: make(chan struct{}),
	}
}

func (c *fakeConn) Watch(enable bool) error {
	if c.watchErr != nil {
		return c.watchErr
	}
	c.watching = enable
	return nil
}

func (c *fakeConn) Send(query string) error {
	c.sent = append(c.sent, query)
	return nil
}

func (c *fakeConn) Reports() <-chan interface{} { return c.reports }
func (c *fakeConn) Done() <-chan struct{}       { return c.done }

func (c *fakeConn) Close() error {
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *fakeConn) hangup() { close(c.done) }

// fakeDialer fails the first `failures` attempts, then hands out fresh
// connections.
type fakeDialer struct {
	failures int
	attempts int
	watchErr error
	conns    []*fakeConn
	dialed   chan *fakeConn
}

func newFakeDialer(failures int) *fakeDialer {
	return &fakeDialer{failures: failures, dialed: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) dial() (Conn, error) {
	d.attempts++
	if d.attempts <= d.failures {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	c.watchErr = d.watchErr
	d.conns = append(d.conns, c)
	d.dialed <- c
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type recorder struct {
	statuses  []Status
	locations []Location
	gnss      [][]Satellite
	legacy    []LegacySatellites
	caps      []Capability
	acquired  int
	released  int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		Status:           func(s Status) { r.statuses = append(r.statuses, s) },
		Location:         func(l Location) { r.locations = append(r.locations, l) },
		GNSSSatellites:   func(s []Satellite) { r.gnss = append(r.gnss, s) },
		LegacySatellites: func(s LegacySatellites) { r.legacy = append(r.legacy, s) },
		Capabilities:     func(c Capability) { r.caps = append(r.caps, c) },
		AcquireWakelock:  func() { r.acquired++ },
		ReleaseWakelock:  func() { r.released++ },
	}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newTestEngine returns an engine driven synchronously by the test.
func newTestEngine(cb Callbacks, failures int) (*engine, *fakeTimer, *fakeDialer) {
	timer := newFakeTimer()
	dialer := newFakeDialer(failures)
	e := newEngine(DefaultConfig(), testLogger(), dialer.dial, timer, cb)
	return e, timer, dialer
}
