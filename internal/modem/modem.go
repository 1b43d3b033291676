package modem

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rescoot/go-mmcli"

	"gpsd-bridge/internal/mm"
)

// Modem power states as reported by mmcli
const (
	PowerStateOn  = "on"
	PowerStateOff = "off"
)

const (
	CheckInterval  = 5 * time.Second
	MaxStartChecks = 12 // 1 minute (12 * 5 seconds)
)

// gnssSwitch is the ModemManager D-Bus API the manager drives
type gnssSwitch interface {
	FindModem() (dbus.ObjectPath, error)
	GetPowerState(modemPath dbus.ObjectPath) (int32, error)
	SetGNSS(modemPath dbus.ObjectPath, on bool) error
}

// Manager prepares the modem's GNSS engine for gpsd
type Manager struct {
	logger *log.Logger
	gnss   gnssSwitch

	findModemID func() (string, error)
	powerState  func(modemID string) (string, error)
	interval    time.Duration
	maxChecks   int
}

// NewManager creates a manager using mmcli for presence checks, falling back
// to gnss when mmcli fails, and gnss for the location setup.
func NewManager(logger *log.Logger, gnss gnssSwitch) *Manager {
	return &Manager{
		logger:      logger,
		gnss:        gnss,
		findModemID: FindModemID,
		powerState:  PowerState,
		interval:    CheckInterval,
		maxChecks:   MaxStartChecks,
	}
}

// FindModemID finds the modem ID
func FindModemID() (string, error) {
	modemList, err := mmcli.ListModems()
	if err != nil {
		return "", errors.Wrap(err, "mmcli ListModems error")
	}

	if len(modemList) == 0 {
		return "", errors.New("no modem found")
	}

	return modemIDFromPath(modemList[0])
}

// modemIDFromPath extracts the index from /org/freedesktop/ModemManager1/Modem/<id>
func modemIDFromPath(path string) (string, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 6 || parts[4] != "Modem" || parts[5] == "" {
		return "", errors.Errorf("unexpected modem path %q", path)
	}
	return parts[5], nil
}

// PowerState returns the mmcli power state of the modem
func PowerState(modemID string) (string, error) {
	details, err := mmcli.GetModemDetails(modemID)
	if err != nil {
		return "", errors.Wrap(err, "mmcli GetModemDetails error")
	}
	return details.Modem.Generic.PowerState, nil
}

// WaitForModem waits for a powered modem to come up
func (m *Manager) WaitForModem(ctx context.Context) error {
	if m.modemReady() {
		return nil
	}

	m.logger.Printf("Waiting for modem to come up...")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.modemReady() {
				m.logger.Printf("Modem is now present")
				return nil
			}

			count++
			if count >= m.maxChecks {
				return errors.Errorf("modem did not come up after %d checks", m.maxChecks)
			}
		}
	}
}

func (m *Manager) modemReady() bool {
	state, err := m.mmcliPowerState()
	if err != nil {
		state, err = m.dbusPowerState()
		if err != nil {
			return false
		}
	}
	return state == PowerStateOn
}

func (m *Manager) mmcliPowerState() (string, error) {
	id, err := m.findModemID()
	if err != nil {
		return "", err
	}
	return m.powerState(id)
}

func (m *Manager) dbusPowerState() (string, error) {
	path, err := m.gnss.FindModem()
	if err != nil {
		return "", err
	}
	state, err := m.gnss.GetPowerState(path)
	if err != nil {
		return "", err
	}
	return mm.PowerStateToString(state), nil
}

// EnableGNSS waits for the modem and puts its GNSS engine in unmanaged mode
func (m *Manager) EnableGNSS(ctx context.Context) error {
	if err := m.WaitForModem(ctx); err != nil {
		return err
	}
	return m.setGNSS(true)
}

// DisableGNSS turns the modem GNSS engine off if a modem is present
func (m *Manager) DisableGNSS() error {
	if _, err := m.findModemID(); err != nil {
		return nil
	}
	return m.setGNSS(false)
}

func (m *Manager) setGNSS(on bool) error {
	path, err := m.gnss.FindModem()
	if err != nil {
		return err
	}
	if err := m.gnss.SetGNSS(path, on); err != nil {
		return errors.Wrapf(err, "failed to switch GNSS on %s", path)
	}

	if on {
		m.logger.Printf("Modem GNSS enabled on %s", path)
	} else {
		m.logger.Printf("Modem GNSS disabled on %s", path)
	}
	return nil
}
