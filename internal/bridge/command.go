package bridge

import (
	"time"

	"github.com/pkg/errors"
)

// ErrEngineStopped is returned when posting to an engine that already quit.
var ErrEngineStopped = errors.New("engine stopped")

type commandKind byte

const (
	cmdQuit commandKind = iota
	cmdStart
	cmdStop
	cmdSetInterval
)

func (k commandKind) String() string {
	switch k {
	case cmdQuit:
		return "quit"
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdSetInterval:
		return "set-interval"
	default:
		return "unknown"
	}
}

type command struct {
	kind     commandKind
	interval time.Duration
}

// commandChannel carries commands from the consumer to the engine, one at a
// time and in order.
type commandChannel struct {
	ch   chan command
	done chan struct{}
}

func newCommandChannel() *commandChannel {
	return &commandChannel{
		ch:   make(chan command, 1),
		done: make(chan struct{}),
	}
}

// post blocks until the engine has room for cmd or has exited.
func (c *commandChannel) post(cmd command) error {
	select {
	case <-c.done:
		return ErrEngineStopped
	default:
	}

	select {
	case c.ch <- cmd:
		return nil
	case <-c.done:
		return ErrEngineStopped
	}
}

// receive is the engine's read side.
func (c *commandChannel) receive() <-chan command {
	return c.ch
}

// close marks the engine as gone. Only the engine calls it, once.
func (c *commandChannel) close() {
	close(c.done)
}
