// Package bridge turns the gpsd report stream into deduplicated,
// rate-controlled status, location and satellite callbacks.
//
// A Bridge runs a single engine goroutine that owns the gpsd connection, the
// report/reconnect timer and all translation state. The consumer only talks
// to it through Init, Start, Stop, SetInterval and Cleanup, which post
// commands to the engine.
package bridge

import (
	"log"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotInitialized           = errors.New("bridge not initialized")
	ErrUnsupportedRecurrence    = errors.New("only periodic recurrence is supported")
	ErrSatelliteCallbackMissing = errors.New("satellite format selected without its callback")
)

// Config holds the engine tunables.
type Config struct {
	// GLONASS PRN band as numbered by gpsd. Satellites in the band are
	// reported with ids starting at 1.
	GlonassFirstPRN int
	GlonassLastPRN  int
	Debug           bool
}

// DefaultConfig returns the gpsd numbering defaults.
func DefaultConfig() Config {
	return Config{
		GlonassFirstPRN: 65,
		GlonassLastPRN:  96,
	}
}

// Bridge is the lifecycle controller. Its methods must be called from a
// single consumer goroutine.
type Bridge struct {
	cfg      Config
	logger   *log.Logger
	dial     DialFunc
	newTimer func() ticker
	eng      *engine
}

// New creates a bridge that opens gpsd sessions through dial.
func New(cfg Config, logger *log.Logger, dial DialFunc) *Bridge {
	if cfg.GlonassFirstPRN == 0 && cfg.GlonassLastPRN == 0 {
		def := DefaultConfig()
		cfg.GlonassFirstPRN = def.GlonassFirstPRN
		cfg.GlonassLastPRN = def.GlonassLastPRN
	}
	return &Bridge{
		cfg:      cfg,
		logger:   logger,
		dial:     dial,
		newTimer: func() ticker { return newReportTimer() },
	}
}

// Init registers the consumer callbacks and starts the engine. Calling Init
// on an initialized bridge is a no-op.
func (b *Bridge) Init(cb Callbacks) error {
	if b.eng != nil {
		b.logger.Printf("Bridge already initialized")
		return nil
	}

	switch cb.SatelliteFormat {
	case SatelliteFormatGNSS:
		if cb.GNSSSatellites == nil {
			return ErrSatelliteCallbackMissing
		}
	case SatelliteFormatLegacy:
		if cb.LegacySatellites == nil {
			return ErrSatelliteCallbackMissing
		}
	}

	eng := newEngine(b.cfg, b.logger, b.dial, b.newTimer(), cb)

	spawn := cb.Spawn
	if spawn == nil {
		spawn = func(_ string, fn func()) error {
			go fn()
			return nil
		}
	}
	if err := spawn("gpsd-bridge", eng.run); err != nil {
		eng.timer.Stop()
		return errors.Wrap(err, "failed to start engine")
	}

	b.eng = eng
	b.logger.Printf("Bridge initialized (satellite format %s)", eng.format)
	return nil
}

// Start begins tracking: the engine connects to gpsd and keeps reconnecting
// until Stop.
func (b *Bridge) Start() error {
	return b.post(command{kind: cmdStart})
}

// Stop ends tracking and closes the gpsd connection.
func (b *Bridge) Stop() error {
	return b.post(command{kind: cmdStop})
}

// SetInterval sets the location report interval. Zero reports every fix as
// it arrives; a positive interval reports the latest fix on a timer instead.
func (b *Bridge) SetInterval(interval time.Duration, recurrence Recurrence) error {
	if b.eng == nil {
		return ErrNotInitialized
	}
	if recurrence != RecurrencePeriodic {
		return ErrUnsupportedRecurrence
	}
	if interval < 0 {
		interval = 0
	}
	return b.post(command{kind: cmdSetInterval, interval: interval})
}

// Cleanup stops the engine and waits for it to exit. No callback fires after
// Cleanup returns.
func (b *Bridge) Cleanup() {
	if b.eng == nil {
		return
	}

	if err := b.eng.cmds.post(command{kind: cmdQuit}); err != nil && err != ErrEngineStopped {
		b.logger.Printf("Failed to post quit: %v", err)
	}
	<-b.eng.cmds.done
	b.eng = nil
}

// InjectTime accepts a time reference and ignores it; gpsd keeps its own clock.
func (b *Bridge) InjectTime(t time.Time, reference time.Time, uncertainty time.Duration) error {
	return nil
}

// InjectLocation accepts a position hint and ignores it; gpsd takes no aiding data.
func (b *Bridge) InjectLocation(latitude, longitude, accuracy float64) error {
	return nil
}

// DeleteAidingData is a no-op since no aiding data is ever stored.
func (b *Bridge) DeleteAidingData(flags uint16) {}

func (b *Bridge) post(cmd command) error {
	if b.eng == nil {
		return ErrNotInitialized
	}
	return b.eng.cmds.post(cmd)
}
