package gpio

import (
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// Receiver needs this long after enable before it answers on the serial port
const ReceiverSettleMS = 200

// line is the subset of *gpiocdev.Line the controller drives
type line interface {
	SetValue(int) error
	Close() error
}

// PowerController holds the GNSS receiver enable line high while tracking
type PowerController struct {
	chip    string
	offset  int
	line    line
	enabled bool
	settle  time.Duration
	logger  func(string, ...interface{})

	request func(chip string, offset int) (line, error)
}

// NewPowerController creates a controller for the given chip and line offset
func NewPowerController(chip string, offset int, logger func(string, ...interface{})) *PowerController {
	if logger == nil {
		logger = func(string, ...interface{}) {}
	}

	return &PowerController{
		chip:    chip,
		offset:  offset,
		settle:  ReceiverSettleMS * time.Millisecond,
		logger:  logger,
		request: requestLine,
	}
}

func requestLine(chip string, offset int) (line, error) {
	return gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("gnss-enable"),
	)
}

// Init requests the GPIO line as output, initially low
func (pc *PowerController) Init() error {
	l, err := pc.request(pc.chip, pc.offset)
	if err != nil {
		return errors.Wrap(err, "failed to request GPIO line")
	}

	pc.line = l
	pc.log("GPIO power controller initialized (chip=%s, line=%d)", pc.chip, pc.offset)
	return nil
}

// Close drives the line low and releases it
func (pc *PowerController) Close() error {
	if pc.line == nil {
		return nil
	}

	if pc.enabled {
		if err := pc.line.SetValue(0); err != nil {
			pc.log("Failed to set GPIO low on close: %v", err)
		}
		pc.enabled = false
	}

	err := pc.line.Close()
	pc.line = nil
	pc.log("GPIO power controller closed")
	return err
}

// Enable powers the receiver and waits for it to settle
func (pc *PowerController) Enable() error {
	if pc.line == nil {
		return errors.New("GPIO not initialized")
	}
	if pc.enabled {
		return nil
	}

	if err := pc.line.SetValue(1); err != nil {
		return errors.Wrap(err, "failed to set GPIO high")
	}
	pc.enabled = true

	time.Sleep(pc.settle)
	pc.log("Receiver powered on")
	return nil
}

// Disable cuts receiver power
func (pc *PowerController) Disable() error {
	if pc.line == nil {
		return errors.New("GPIO not initialized")
	}
	if !pc.enabled {
		return nil
	}

	if err := pc.line.SetValue(0); err != nil {
		return errors.Wrap(err, "failed to set GPIO low")
	}
	pc.enabled = false

	pc.log("Receiver powered off")
	return nil
}

func (pc *PowerController) log(format string, args ...interface{}) {
	pc.logger("[GPIO] "+format, args...)
}
