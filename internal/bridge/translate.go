package bridge

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/stratoberry/go-gpsd"
)

func (e *engine) handleReport(r interface{}) {
	switch report := r.(type) {
	case *gpsd.VERSIONReport:
		e.handleVersion(report)
	case *gpsd.DEVICESReport:
		e.handleDevices(report)
	case *gpsd.SKYReport:
		e.handleSky(report)
	case *gpsd.TPVReport:
		e.handleTPV(report)
	default:
		e.debugf("Ignoring gpsd report %T", r)
	}
}

func (e *engine) handleVersion(r *gpsd.VERSIONReport) {
	v := r.Release + "/" + r.Rev
	if len(v) > cap(e.version) {
		e.version = make([]byte, len(v))
	}
	e.version = append(e.version[:0], v...)
	e.versionSnap.Store(string(e.version))
	e.logger.Printf("gpsd version %s", v)
}

// handleDevices reports the engine as on when any device has been activated.
// The device list never downgrades a status that is already on.
func (e *engine) handleDevices(r *gpsd.DEVICESReport) {
	on := false
	for _, d := range r.Devices {
		if deviceActivated(d.Activated) {
			on = true
			break
		}
	}

	switch {
	case on && (e.status == StatusNone || e.status == StatusEngineOff):
		e.setStatus(StatusEngineOn)
	case !on && e.status == StatusNone:
		e.setStatus(StatusEngineOff)
	}
}

// deviceActivated accepts both the numeric and the ISO8601 form gpsd uses
// for the activation time. Devices that are present but powered off carry
// no activation time.
func deviceActivated(activated string) bool {
	activated = strings.TrimSpace(activated)
	if activated == "" {
		return false
	}
	if secs, err := strconv.ParseFloat(activated, 64); err == nil {
		return secs > 0
	}
	if t, err := time.Parse(time.RFC3339Nano, activated); err == nil {
		return t.Unix() > 0
	}
	return false
}

func (e *engine) handleSky(r *gpsd.SKYReport) {
	e.beginSession()

	switch e.format {
	case SatelliteFormatGNSS:
		e.cb.GNSSSatellites(e.cfg.gnssSatellites(r.Satellites))
	case SatelliteFormatLegacy:
		e.cb.LegacySatellites(legacySatellites(r.Satellites))
	}
}

func (e *engine) handleTPV(r *gpsd.TPVReport) {
	e.beginSession()

	e.fix = fixQuality(r.Mode)
	if e.fix < Fix2D {
		e.location = Location{}
	} else {
		e.location = locationFromTPV(r, e.fix)
	}

	e.reportLocation(false)
}

func fixQuality(mode gpsd.Mode) FixQuality {
	switch mode {
	case 1:
		return FixNone
	case 2:
		return Fix2D
	case 3:
		return Fix3D
	default:
		return FixNotSeen
	}
}

// locationFromTPV builds a location from the fields present on r. gpsd omits
// unknown members, which go-gpsd decodes as zero.
func locationFromTPV(r *gpsd.TPVReport, fix FixQuality) Location {
	var loc Location

	if (r.Lat != 0 || r.Lon != 0) && !r.Time.IsZero() {
		loc.Flags |= HasLatLong
		loc.Latitude = r.Lat
		loc.Longitude = r.Lon
		loc.Timestamp = r.Time.UnixMilli()
	}
	if fix >= Fix3D && r.Alt != 0 {
		loc.Flags |= HasAltitude
		loc.Altitude = r.Alt
	}
	if r.Speed != 0 {
		loc.Flags |= HasSpeed
		loc.Speed = r.Speed
	}
	if r.Track != 0 {
		loc.Flags |= HasBearing
		loc.Bearing = r.Track
	}

	if r.Epx != 0 || r.Epy != 0 {
		loc.Flags |= HasAccuracy
		loc.Accuracy = math.Max(r.Epx, r.Epy)
	}
	if r.Epv != 0 && r.Epv > loc.Accuracy {
		loc.Flags |= HasAccuracy
		loc.Accuracy = r.Epv
	}

	return loc
}
