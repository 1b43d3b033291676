package bridge

import (
	"log"
	"sync/atomic"
	"time"
)

type wakeSource int

const (
	wakeCommand wakeSource = iota
	wakeReport
	wakeHangup
	wakeTimer
)

// wake tells the engine which source became ready.
type wake struct {
	source wakeSource
	cmd    command
	report interface{}
}

// engine owns all bridge state. Every field below is touched only from run,
// except versionSnap which is read by the debug hook.
type engine struct {
	cfg    Config
	logger *log.Logger
	cb     Callbacks
	format SatelliteFormat
	dial   DialFunc
	cmds   *commandChannel
	timer  ticker

	conn     Conn
	watching bool
	interval time.Duration

	version     []byte
	versionSnap atomic.Value

	status      Status
	emitted     Status
	fix         FixQuality
	reportedFix FixQuality
	location    Location
}

func newEngine(cfg Config, logger *log.Logger, dial DialFunc, timer ticker, cb Callbacks) *engine {
	e := &engine{
		cfg:    cfg,
		logger: logger,
		cb:     cb,
		format: cb.resolveSatelliteFormat(),
		dial:   dial,
		cmds:   newCommandChannel(),
		timer:  timer,
	}
	e.versionSnap.Store("")
	return e
}

func (e *engine) run() {
	defer e.cmds.close()

	if e.cb.Capabilities != nil {
		e.cb.Capabilities(CapabilityScheduling)
	}

	for {
		w := e.wait()

		if e.cb.AcquireWakelock != nil {
			e.cb.AcquireWakelock()
		}
		quit := e.dispatch(w)
		if e.cb.ReleaseWakelock != nil {
			e.cb.ReleaseWakelock()
		}

		if quit {
			return
		}
	}
}

// wait blocks until a command, a gpsd report, a hangup or a timer fire is
// ready. The daemon channels are nil, and never ready, while disconnected.
func (e *engine) wait() wake {
	var reports <-chan interface{}
	var hangup <-chan struct{}
	if e.conn != nil {
		reports = e.conn.Reports()
		hangup = e.conn.Done()
	}

	select {
	case cmd := <-e.cmds.receive():
		return wake{source: wakeCommand, cmd: cmd}
	case r, ok := <-reports:
		if !ok {
			return wake{source: wakeHangup}
		}
		return wake{source: wakeReport, report: r}
	case <-hangup:
		return wake{source: wakeHangup}
	case <-e.timer.C():
		return wake{source: wakeTimer}
	}
}

func (e *engine) dispatch(w wake) bool {
	switch w.source {
	case wakeCommand:
		return e.handleCommand(w.cmd)
	case wakeReport:
		e.handleReport(w.report)
	case wakeHangup:
		e.logger.Printf("gpsd connection lost, reconnecting in %v", ReconnectBackoff)
		e.disconnect()
		if e.watching {
			e.timer.Arm(ReconnectBackoff)
		}
	case wakeTimer:
		e.handleTimer()
	}
	return false
}

func (e *engine) handleCommand(cmd command) bool {
	e.debugf("Command %s", cmd.kind)

	switch cmd.kind {
	case cmdQuit:
		e.shutdown()
		return true
	case cmdStart:
		if e.watching {
			return false
		}
		e.watching = true
		e.connect()
	case cmdStop:
		if !e.watching {
			return false
		}
		e.watching = false
		e.disconnect()
	case cmdSetInterval:
		e.interval = cmd.interval
		if e.conn != nil {
			e.timer.Arm(e.interval)
		}
	}
	return false
}

func (e *engine) handleTimer() {
	if e.conn == nil {
		if e.watching {
			e.connect()
		}
		return
	}
	if e.interval > 0 {
		e.reportLocation(true)
	}
}

func (e *engine) connect() {
	conn, err := e.dial()
	if err != nil {
		e.logger.Printf("Failed to connect to gpsd: %v", err)
		e.timer.Arm(ReconnectBackoff)
		return
	}

	if err := conn.Watch(true); err != nil {
		e.logger.Printf("Failed to enable gpsd stream: %v", err)
		if err := conn.Close(); err != nil {
			e.debugf("Closing gpsd connection: %v", err)
		}
		e.timer.Arm(ReconnectBackoff)
		return
	}

	e.conn = conn
	e.status = StatusNone
	e.fix = FixNotSeen
	e.reportedFix = FixNotSeen
	e.location = Location{}
	e.logger.Printf("Connected to gpsd")

	for _, query := range []string{"VERSION", "DEVICES"} {
		if err := conn.Send(query); err != nil {
			e.logger.Printf("Failed to query gpsd %s: %v", query, err)
		}
	}

	e.timer.Arm(e.interval)
}

func (e *engine) disconnect() {
	e.timer.Disarm()
	if e.conn == nil {
		return
	}

	conn := e.conn
	e.conn = nil
	if err := conn.Watch(false); err != nil {
		e.debugf("Disabling gpsd stream: %v", err)
	}
	if err := conn.Close(); err != nil {
		e.debugf("Closing gpsd connection: %v", err)
	}
	e.logger.Printf("Disconnected from gpsd")
}

func (e *engine) shutdown() {
	e.watching = false
	e.disconnect()
	e.timer.Stop()
	e.version = nil
	e.versionSnap.Store("")
}

// reportLocation delivers the cached location. Event-driven reports are held
// back while nothing new can be said (no position and no good fix reported
// since the last regression) and whenever periodic reporting owns emission.
func (e *engine) reportLocation(fromTimer bool) {
	if !fromTimer {
		if !e.location.Has(HasLatLong) && e.reportedFix < Fix2D {
			return
		}
		if e.interval > 0 {
			return
		}
	}

	e.reportedFix = e.fix
	if e.cb.Location != nil {
		e.cb.Location(e.location)
	}
}

func (e *engine) beginSession() {
	if e.status != StatusSessionBegin {
		e.setStatus(StatusSessionBegin)
	}
}

// setStatus records s and tells the consumer only when it differs from what
// was last delivered.
func (e *engine) setStatus(s Status) {
	e.status = s
	if s == e.emitted {
		return
	}
	e.emitted = s
	if e.cb.Status != nil {
		e.cb.Status(s)
	}
}

func (e *engine) debugf(format string, args ...interface{}) {
	if e.cfg.Debug {
		e.logger.Printf(format, args...)
	}
}
