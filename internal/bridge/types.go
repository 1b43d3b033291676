package bridge

import "time"

// ReconnectBackoff is the fixed delay between gpsd connection attempts.
const ReconnectBackoff = 3 * time.Second

// Maximum list sizes handed to the consumer
const (
	MaxGNSSSatellites   = 64
	MaxLegacySatellites = 32
)

// Status is the engine/session state reported to the consumer.
type Status int

const (
	StatusNone Status = iota
	StatusEngineOff
	StatusEngineOn
	StatusSessionBegin
)

func (s Status) String() string {
	switch s {
	case StatusEngineOff:
		return "engine-off"
	case StatusEngineOn:
		return "engine-on"
	case StatusSessionBegin:
		return "session-begin"
	default:
		return "none"
	}
}

// FixQuality is ordered: a higher value is a better fix.
type FixQuality int

const (
	FixNotSeen FixQuality = iota
	FixNone
	Fix2D
	Fix3D
)

func (q FixQuality) String() string {
	switch q {
	case FixNone:
		return "none"
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	default:
		return "not-seen"
	}
}

// LocationFlags marks which Location fields hold valid data.
type LocationFlags uint16

const (
	HasLatLong LocationFlags = 1 << iota
	HasAltitude
	HasSpeed
	HasBearing
	HasAccuracy
)

// Location is a single position report. Only fields whose flag is set are valid.
type Location struct {
	Flags     LocationFlags
	Latitude  float64
	Longitude float64
	Altitude  float64
	Speed     float64 // m/s
	Bearing   float64 // degrees true
	Accuracy  float64 // meters
	Timestamp int64   // milliseconds since the Unix epoch
}

// Has reports whether all flags in f are set.
func (l Location) Has(f LocationFlags) bool {
	return l.Flags&f == f
}

// Constellation classifies a satellite by PRN range.
type Constellation int

const (
	ConstellationUnknown Constellation = iota
	ConstellationGPS
	ConstellationSBAS
	ConstellationGLONASS
	ConstellationQZSS
	ConstellationBeiDou
)

func (c Constellation) String() string {
	switch c {
	case ConstellationGPS:
		return "gps"
	case ConstellationSBAS:
		return "sbas"
	case ConstellationGLONASS:
		return "glonass"
	case ConstellationQZSS:
		return "qzss"
	case ConstellationBeiDou:
		return "beidou"
	default:
		return "unknown"
	}
}

// Satellite is one entry of the GNSS satellite list.
type Satellite struct {
	Svid          int
	Constellation Constellation
	CN0           float32 // dB-Hz
	Elevation     float32
	Azimuth       float32
	UsedInFix     bool
}

// LegacySatellite is one entry of the legacy GPS satellite list.
type LegacySatellite struct {
	PRN       int
	SNR       float32
	Elevation float32
	Azimuth   float32
}

// LegacySatellites is the legacy satellite report. Only UsedInFixMask is
// populated; bit PRN-1 is set for PRNs 1-32 used in the fix.
type LegacySatellites struct {
	Satellites    []LegacySatellite
	EphemerisMask uint32
	AlmanacMask   uint32
	UsedInFixMask uint32
}

// SatelliteFormat selects which satellite report shape the consumer receives.
type SatelliteFormat int

const (
	// SatelliteFormatAuto picks GNSS when its callback is set, else legacy.
	SatelliteFormatAuto SatelliteFormat = iota
	SatelliteFormatGNSS
	SatelliteFormatLegacy
	SatelliteFormatNone
)

func (f SatelliteFormat) String() string {
	switch f {
	case SatelliteFormatAuto:
		return "auto"
	case SatelliteFormatGNSS:
		return "gnss"
	case SatelliteFormatLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// Capability is a bitmask advertised to the consumer once per engine run.
type Capability uint32

const (
	CapabilityScheduling Capability = 1 << 0
)

// Recurrence is the report cadence mode. Only periodic is supported.
type Recurrence int

const (
	RecurrencePeriodic Recurrence = iota
	RecurrenceSingle
)

// Callbacks is the consumer side of the bridge. Every field is optional.
type Callbacks struct {
	Status           func(Status)
	Location         func(Location)
	GNSSSatellites   func([]Satellite)
	LegacySatellites func(LegacySatellites)
	Capabilities     func(Capability)
	AcquireWakelock  func()
	ReleaseWakelock  func()

	// Spawn runs the engine. It defaults to a plain goroutine.
	Spawn func(name string, fn func()) error

	SatelliteFormat SatelliteFormat
}

// resolveSatelliteFormat picks the satellite shape once, preferring GNSS.
func (cb Callbacks) resolveSatelliteFormat() SatelliteFormat {
	switch cb.SatelliteFormat {
	case SatelliteFormatGNSS:
		if cb.GNSSSatellites != nil {
			return SatelliteFormatGNSS
		}
	case SatelliteFormatLegacy:
		if cb.LegacySatellites != nil {
			return SatelliteFormatLegacy
		}
	case SatelliteFormatAuto:
		if cb.GNSSSatellites != nil {
			return SatelliteFormatGNSS
		}
		if cb.LegacySatellites != nil {
			return SatelliteFormatLegacy
		}
	}
	return SatelliteFormatNone
}
