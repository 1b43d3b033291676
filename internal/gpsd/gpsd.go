// Package gpsd adapts a go-gpsd session to the bridge connection interface.
package gpsd

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stratoberry/go-gpsd"

	"gpsd-bridge/internal/bridge"
)

// reportClasses are the gpsd report classes the bridge consumes.
var reportClasses = []string{"VERSION", "DEVICES", "SKY", "TPV"}

const reportBuffer = 32

// DialTimeout bounds the reachability check made before each session dial.
var DialTimeout = 3 * time.Second

// Conn is one gpsd session. Reports decoded by the session reader are
// forwarded on a buffered channel; Done closes when the reader stops.
type Conn struct {
	logger  *log.Logger
	session *gpsd.Session

	reports chan interface{}
	done    chan struct{}
	closing chan struct{}

	mu      sync.Mutex
	watched bool
	closed  bool
}

// Dialer returns a bridge.DialFunc connecting to the gpsd server at addr
// (host:port).
func Dialer(addr string, logger *log.Logger) bridge.DialFunc {
	return func() (bridge.Conn, error) {
		c, err := Dial(addr, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Dial connects to gpsd and registers the report filters. Streaming starts
// with Watch(true).
func Dial(addr string, logger *log.Logger) (*Conn, error) {
	// gpsd.Dial has no timeout of its own
	check, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "gpsd at %s unreachable", addr)
	}
	check.Close()

	session, err := gpsd.Dial(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to gpsd at %s", addr)
	}
	if session == nil {
		return nil, errors.Errorf("failed to connect to gpsd at %s", addr)
	}

	c := newConn(session, logger)
	for _, class := range reportClasses {
		session.AddFilter(class, c.forward)
	}
	return c, nil
}

func newConn(session *gpsd.Session, logger *log.Logger) *Conn {
	return &Conn{
		logger:  logger,
		session: session,
		reports: make(chan interface{}, reportBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
}

// forward runs on the session reader goroutine.
func (c *Conn) forward(r interface{}) {
	select {
	case c.reports <- r:
	case <-c.closing:
	}
}

// Watch enables or disables the report stream. The first enable starts the
// session reader.
func (c *Conn) Watch(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("gpsd connection closed")
	}

	if !enable {
		if c.watched {
			c.session.SendCommand(`WATCH={"enable":false}`)
		}
		return nil
	}

	if c.watched {
		c.session.SendCommand(`WATCH={"enable":true,"json":true}`)
		return nil
	}

	c.watched = true
	readerDone := c.session.Watch()
	go func() {
		<-readerDone
		close(c.done)
	}()
	return nil
}

// Send issues a gpsd query such as VERSION or DEVICES.
func (c *Conn) Send(query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("gpsd connection closed")
	}
	c.session.SendCommand(query)
	return nil
}

func (c *Conn) Reports() <-chan interface{} {
	return c.reports
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close shuts the socket down. The session reader then fails and exits, and
// any report it was about to forward is dropped.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closing)
	c.session.Close()
	if c.logger != nil {
		c.logger.Printf("gpsd connection closed")
	}
	return nil
}
