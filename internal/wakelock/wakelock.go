// Package wakelock blocks system sleep through a logind inhibitor lock while
// gpsd events are being handled.
package wakelock

import (
	"log"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	login1Service = "org.freedesktop.login1"
	login1Path    = "/org/freedesktop/login1"
	login1Inhibit = "org.freedesktop.login1.Manager.Inhibit"

	// DefaultLinger keeps the lock between closely spaced events
	DefaultLinger = 2 * time.Second
)

// Inhibitor is a reference counted sleep inhibitor. The logind lock is taken
// on the first Acquire and dropped once the count has stayed at zero for the
// linger period.
type Inhibitor struct {
	logger *log.Logger
	linger time.Duration

	// take returns a function releasing the lock
	take func() (func() error, error)

	mu      sync.Mutex
	count   int
	release func() error
	timer   *time.Timer
	gen     uint64
}

// New connects to logind on the system bus.
func New(who, why string, logger *log.Logger) (*Inhibitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to system bus")
	}

	take := func() (func() error, error) {
		var fd dbus.UnixFD
		obj := conn.Object(login1Service, login1Path)
		if err := obj.Call(login1Inhibit, 0, "sleep", who, why, "block").Store(&fd); err != nil {
			return nil, errors.Wrap(err, "logind inhibit failed")
		}
		return func() error { return unix.Close(int(fd)) }, nil
	}

	return newInhibitor(take, DefaultLinger, logger), nil
}

func newInhibitor(take func() (func() error, error), linger time.Duration, logger *log.Logger) *Inhibitor {
	return &Inhibitor{logger: logger, linger: linger, take: take}
}

// Acquire increments the hold count, taking the lock if it is not held.
func (i *Inhibitor) Acquire() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.count++
	i.gen++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	if i.release != nil {
		return
	}

	release, err := i.take()
	if err != nil {
		i.logger.Printf("Failed to acquire sleep inhibitor: %v", err)
		return
	}
	i.release = release
}

// Release decrements the hold count. Unbalanced calls are ignored.
func (i *Inhibitor) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.count == 0 {
		return
	}
	i.count--
	if i.count > 0 || i.release == nil {
		return
	}

	if i.linger <= 0 {
		i.drop()
		return
	}

	gen := i.gen
	i.timer = time.AfterFunc(i.linger, func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if i.gen == gen && i.count == 0 {
			i.drop()
		}
	})
}

// Close drops the lock regardless of the hold count.
func (i *Inhibitor) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.count = 0
	i.gen++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.drop()
}

// Held reports whether the logind lock is currently taken.
func (i *Inhibitor) Held() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.release != nil
}

func (i *Inhibitor) drop() {
	if i.release == nil {
		return
	}
	if err := i.release(); err != nil {
		i.logger.Printf("Failed to release sleep inhibitor: %v", err)
	}
	i.release = nil
	i.timer = nil
}
