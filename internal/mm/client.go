package mm

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
)

const (
	ModemManagerService = "org.freedesktop.ModemManager1"
	ModemManagerPath    = "/org/freedesktop/ModemManager1"

	ModemInterface         = "org.freedesktop.ModemManager1.Modem"
	ModemLocationInterface = "org.freedesktop.ModemManager1.Modem.Location"

	DBusPropertiesInterface = "org.freedesktop.DBus.Properties"
	DBusObjectManager       = "org.freedesktop.DBus.ObjectManager"
)

// Client is a D-Bus client for the ModemManager location API
type Client struct {
	conn   *dbus.Conn
	debug  bool
	logger func(string, ...interface{})
}

// NewClient creates a new ModemManager D-Bus client
func NewClient(debug bool, logger func(string, ...interface{})) (*Client, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to system bus")
	}

	if logger == nil {
		logger = func(string, ...interface{}) {}
	}

	return &Client{
		conn:   conn,
		debug:  debug,
		logger: logger,
	}, nil
}

// Close closes the D-Bus connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// FindModem finds the first available modem
func (c *Client) FindModem() (dbus.ObjectPath, error) {
	obj := c.conn.Object(ModemManagerService, ModemManagerPath)

	var managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := obj.Call(DBusObjectManager+".GetManagedObjects", 0).Store(&managedObjects)
	if err != nil {
		return "", errors.Wrap(err, "failed to get managed objects")
	}

	for path, interfaces := range managedObjects {
		if _, hasModem := interfaces[ModemInterface]; hasModem {
			return path, nil
		}
	}

	return "", errors.New("no modem found")
}

// GetProperty gets a property from the modem
func (c *Client) GetProperty(modemPath dbus.ObjectPath, iface, property string) (dbus.Variant, error) {
	obj := c.conn.Object(ModemManagerService, modemPath)

	var value dbus.Variant
	err := obj.Call(DBusPropertiesInterface+".Get", 0, iface, property).Store(&value)
	if err != nil {
		return value, errors.Wrapf(err, "failed to get property %s.%s", iface, property)
	}

	c.log("Get %s.%s = %v", iface, property, value.Value())
	return value, nil
}

func (c *Client) uint32Property(modemPath dbus.ObjectPath, property string) (uint32, error) {
	variant, err := c.GetProperty(modemPath, ModemLocationInterface, property)
	if err != nil {
		return 0, err
	}
	if v, ok := variant.Value().(uint32); ok {
		return v, nil
	}
	return 0, errors.Errorf("invalid %s type %T", property, variant.Value())
}

// GetPowerState returns the modem power state (MMModemPowerState*)
func (c *Client) GetPowerState(modemPath dbus.ObjectPath) (int32, error) {
	variant, err := c.GetProperty(modemPath, ModemInterface, "PowerState")
	if err != nil {
		return MMModemPowerStateUnknown, err
	}
	return powerStateValue(variant.Value())
}

// PowerState is exported as "u"; a signed value is accepted too.
func powerStateValue(v interface{}) (int32, error) {
	switch state := v.(type) {
	case uint32:
		return int32(state), nil
	case int32:
		return state, nil
	default:
		return MMModemPowerStateUnknown, errors.Errorf("invalid PowerState type %T", v)
	}
}

// GetLocationCapabilities returns the available location sources
func (c *Client) GetLocationCapabilities(modemPath dbus.ObjectPath) (uint32, error) {
	return c.uint32Property(modemPath, "Capabilities")
}

// GetEnabledLocationSources returns the currently enabled location sources
func (c *Client) GetEnabledLocationSources(modemPath dbus.ObjectPath) (uint32, error) {
	return c.uint32Property(modemPath, "Enabled")
}

// SetupLocation configures location services
func (c *Client) SetupLocation(modemPath dbus.ObjectPath, sources uint32, signalLocation bool) error {
	obj := c.conn.Object(ModemManagerService, modemPath)
	c.log("Setup location sources %s", LocationSourcesToString(sources))
	if err := obj.Call(ModemLocationInterface+".Setup", 0, sources, signalLocation).Err; err != nil {
		return errors.Wrap(err, "failed to setup location sources")
	}
	return nil
}

// SetGNSS switches the modem GNSS engine into unmanaged mode, so its NMEA
// port is free for gpsd, or turns it off. Other enabled sources are kept.
func (c *Client) SetGNSS(modemPath dbus.ObjectPath, on bool) error {
	caps, err := c.GetLocationCapabilities(modemPath)
	if err != nil {
		return err
	}
	if on && caps&MMModemLocationSourceGpsUnmanaged == 0 {
		return errors.Errorf("modem has no unmanaged GNSS (capabilities %s)", LocationSourcesToString(caps))
	}

	enabled, err := c.GetEnabledLocationSources(modemPath)
	if err != nil {
		return err
	}

	want := GNSSSources(enabled, on)
	if want == enabled {
		c.log("Location sources already %s", LocationSourcesToString(enabled))
		return nil
	}
	return c.SetupLocation(modemPath, want, false)
}

// WatchModems calls onAdded whenever ModemManager exports a new modem
func (c *Client) WatchModems(onAdded func(dbus.ObjectPath)) error {
	signals := make(chan *dbus.Signal, 10)
	c.conn.Signal(signals)

	rule := fmt.Sprintf("type='signal',sender='%s',interface='%s',member='InterfacesAdded'",
		ModemManagerService, DBusObjectManager)
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return errors.Wrap(err, "failed to add match rule")
	}

	go func() {
		for signal := range signals {
			if path, ok := modemAdded(signal); ok {
				c.log("Modem added: %s", path)
				if onAdded != nil {
					onAdded(path)
				}
			}
		}
	}()

	return nil
}

func modemAdded(signal *dbus.Signal) (dbus.ObjectPath, bool) {
	if signal.Name != DBusObjectManager+".InterfacesAdded" || len(signal.Body) < 2 {
		return "", false
	}
	path, ok := signal.Body[0].(dbus.ObjectPath)
	if !ok {
		return "", false
	}
	interfaces, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return "", false
	}
	_, hasModem := interfaces[ModemInterface]
	return path, hasModem
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		c.logger("[MM] "+format, args...)
	}
}
