package service

import (
	"fmt"
	"math/bits"
	"time"

	"gpsd-bridge/internal/bridge"
)

// optional gps hash fields, cleared when a report lacks them
var locationFields = []string{"latitude", "longitude", "timestamp", "altitude", "speed", "course", "accuracy"}

func satelliteFormat(name string) bridge.SatelliteFormat {
	switch name {
	case "gnss":
		return bridge.SatelliteFormatGNSS
	case "legacy":
		return bridge.SatelliteFormatLegacy
	default:
		return bridge.SatelliteFormatAuto
	}
}

// callbacks run on the bridge engine goroutine.
func (s *Service) callbacks() bridge.Callbacks {
	cb := bridge.Callbacks{
		Status:           s.onStatus,
		Location:         s.onLocation,
		GNSSSatellites:   s.onGNSSSatellites,
		LegacySatellites: s.onLegacySatellites,
		Capabilities: func(c bridge.Capability) {
			s.Logger.Printf("gpsd bridge capabilities: %#x", uint32(c))
		},
		SatelliteFormat: satelliteFormat(s.Config.SatelliteFormat),
	}

	if s.wakelock != nil {
		cb.AcquireWakelock = s.wakelock.Acquire
		cb.ReleaseWakelock = s.wakelock.Release
	}

	return cb
}

func (s *Service) onStatus(status bridge.Status) {
	s.Logger.Printf("gps status: %s", status)
	ctx, cancel := publishContext()
	defer cancel()
	if err := s.pub.PublishGPSState(ctx, "state", status.String()); err != nil {
		s.Logger.Printf("Failed to publish gps status: %v", err)
	}
}

func (s *Service) onLocation(loc bridge.Location) {
	data, stale := locationData(loc)
	ctx, cancel := publishContext()
	defer cancel()
	if err := s.pub.PublishLocation(ctx, data, stale); err != nil {
		s.Logger.Printf("Failed to publish location: %v", err)
	}
}

func (s *Service) onGNSSSatellites(sats []bridge.Satellite) {
	ctx, cancel := publishContext()
	defer cancel()
	if err := s.pub.PublishSatellites(ctx, gnssSummary(sats)); err != nil {
		s.Logger.Printf("Failed to publish satellites: %v", err)
	}
}

func (s *Service) onLegacySatellites(sats bridge.LegacySatellites) {
	ctx, cancel := publishContext()
	defer cancel()
	if err := s.pub.PublishSatellites(ctx, legacySummary(sats)); err != nil {
		s.Logger.Printf("Failed to publish satellites: %v", err)
	}
}

// locationData renders a location report for the gps hash and lists the
// fields it does not carry.
func locationData(loc bridge.Location) (map[string]interface{}, []string) {
	data := map[string]interface{}{
		"active": fmt.Sprintf("%t", loc.Has(bridge.HasLatLong)),
	}

	if loc.Has(bridge.HasLatLong) {
		data["latitude"] = fmt.Sprintf("%.6f", loc.Latitude)
		data["longitude"] = fmt.Sprintf("%.6f", loc.Longitude)
		data["timestamp"] = time.UnixMilli(loc.Timestamp).UTC().Format(time.RFC3339)
	}
	if loc.Has(bridge.HasAltitude) {
		data["altitude"] = fmt.Sprintf("%.6f", loc.Altitude)
	}
	if loc.Has(bridge.HasSpeed) {
		data["speed"] = fmt.Sprintf("%.6f", loc.Speed*3.6) // Convert m/s to km/h
	}
	if loc.Has(bridge.HasBearing) {
		data["course"] = fmt.Sprintf("%.6f", loc.Bearing)
	}
	if loc.Has(bridge.HasAccuracy) {
		data["accuracy"] = fmt.Sprintf("%.1f", loc.Accuracy)
	}

	var stale []string
	for _, f := range locationFields {
		if _, ok := data[f]; !ok {
			stale = append(stale, f)
		}
	}
	return data, stale
}

func gnssSummary(sats []bridge.Satellite) map[string]interface{} {
	used := 0
	perConstellation := map[bridge.Constellation]int{}
	for _, sat := range sats {
		if sat.UsedInFix {
			used++
		}
		perConstellation[sat.Constellation]++
	}

	data := map[string]interface{}{
		"visible": len(sats),
		"used":    used,
	}
	for c, n := range perConstellation {
		data[c.String()] = n
	}
	return data
}

func legacySummary(sats bridge.LegacySatellites) map[string]interface{} {
	return map[string]interface{}{
		"visible": len(sats.Satellites),
		"used":    bits.OnesCount32(sats.UsedInFixMask),
	}
}
