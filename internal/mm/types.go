package mm

import "strings"

// ModemManager constants and enums

// Power State
const (
	MMModemPowerStateUnknown int32 = 0
	MMModemPowerStateOff     int32 = 1
	MMModemPowerStateLow     int32 = 2
	MMModemPowerStateOn      int32 = 3
)

// Location Source
const (
	MMModemLocationSource3gppLacCi    uint32 = 1 << 0
	MMModemLocationSourceGpsRaw       uint32 = 1 << 1
	MMModemLocationSourceGpsNmea      uint32 = 1 << 2
	MMModemLocationSourceCdmaBs       uint32 = 1 << 3
	MMModemLocationSourceGpsUnmanaged uint32 = 1 << 4
	MMModemLocationSourceAgpsMsa      uint32 = 1 << 5
	MMModemLocationSourceAgpsMsb      uint32 = 1 << 6
)

// managed GNSS sources conflict with unmanaged mode
const gnssSources = MMModemLocationSourceGpsRaw |
	MMModemLocationSourceGpsNmea |
	MMModemLocationSourceGpsUnmanaged |
	MMModemLocationSourceAgpsMsa |
	MMModemLocationSourceAgpsMsb

var locationSourceNames = []struct {
	bit  uint32
	name string
}{
	{MMModemLocationSource3gppLacCi, "3gpp-lac-ci"},
	{MMModemLocationSourceGpsRaw, "gps-raw"},
	{MMModemLocationSourceGpsNmea, "gps-nmea"},
	{MMModemLocationSourceCdmaBs, "cdma-bs"},
	{MMModemLocationSourceGpsUnmanaged, "gps-unmanaged"},
	{MMModemLocationSourceAgpsMsa, "agps-msa"},
	{MMModemLocationSourceAgpsMsb, "agps-msb"},
}

// GNSSSources returns the enabled source mask with GNSS switched to
// unmanaged (on) or fully off, leaving non-GNSS sources untouched.
func GNSSSources(enabled uint32, on bool) uint32 {
	sources := enabled &^ gnssSources
	if on {
		sources |= MMModemLocationSourceGpsUnmanaged
	}
	return sources
}

// Helper functions

func PowerStateToString(state int32) string {
	switch state {
	case MMModemPowerStateOff:
		return "off"
	case MMModemPowerStateLow:
		return "low-power"
	case MMModemPowerStateOn:
		return "on"
	default:
		return "unknown"
	}
}

func LocationSourcesToString(sources uint32) string {
	if sources == 0 {
		return "none"
	}
	var names []string
	for _, s := range locationSourceNames {
		if sources&s.bit != 0 {
			names = append(names, s.name)
		}
	}
	return strings.Join(names, "|")
}
