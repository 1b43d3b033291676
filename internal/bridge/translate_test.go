package bridge

import (
	"testing"
	"time"

	"github.com/stratoberry/go-gpsd"
)

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		prn      int
		wantType Constellation
		wantSvid int
	}{
		{name: "gps low", prn: 1, wantType: ConstellationGPS, wantSvid: 1},
		{name: "gps high", prn: 32, wantType: ConstellationGPS, wantSvid: 32},
		{name: "sbas nmea range", prn: 46, wantType: ConstellationSBAS, wantSvid: 46},
		{name: "sbas native range", prn: 133, wantType: ConstellationSBAS, wantSvid: 133},
		{name: "glonass first", prn: 65, wantType: ConstellationGLONASS, wantSvid: 1},
		{name: "glonass last", prn: 96, wantType: ConstellationGLONASS, wantSvid: 32},
		{name: "qzss", prn: 193, wantType: ConstellationQZSS, wantSvid: 193},
		{name: "qzss last", prn: 200, wantType: ConstellationQZSS, wantSvid: 200},
		{name: "beidou first", prn: 201, wantType: ConstellationBeiDou, wantSvid: 1},
		{name: "beidou last", prn: 235, wantType: ConstellationBeiDou, wantSvid: 35},
		{name: "zero", prn: 0, wantType: ConstellationUnknown, wantSvid: 0},
		{name: "between bands", prn: 100, wantType: ConstellationUnknown, wantSvid: 100},
		{name: "above beidou", prn: 236, wantType: ConstellationUnknown, wantSvid: 236},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotSvid := cfg.classify(tt.prn)
			if gotType != tt.wantType || gotSvid != tt.wantSvid {
				t.Errorf("classify(%d) = %s/%d, want %s/%d", tt.prn, gotType, gotSvid, tt.wantType, tt.wantSvid)
			}
		})
	}
}

func TestClassifyCustomGlonassBand(t *testing.T) {
	cfg := Config{GlonassFirstPRN: 70, GlonassLastPRN: 93}

	if c, svid := cfg.classify(70); c != ConstellationGLONASS || svid != 1 {
		t.Errorf("classify(70) = %s/%d, want glonass/1", c, svid)
	}
	if c, _ := cfg.classify(65); c != ConstellationUnknown {
		t.Errorf("classify(65) = %s, want unknown outside the configured band", c)
	}
}

func TestGNSSSatellitesClampedAndUsed(t *testing.T) {
	sats := make([]gpsd.Satellite, 70)
	for i := range sats {
		sats[i].PRN = float64(i + 1)
		sats[i].Ss = 30
		sats[i].Used = i%2 == 0
	}

	got := DefaultConfig().gnssSatellites(sats)
	if len(got) != MaxGNSSSatellites {
		t.Fatalf("Expected %d satellites, got %d", MaxGNSSSatellites, len(got))
	}
	if !got[0].UsedInFix || got[1].UsedInFix {
		t.Errorf("Used flags not carried over: %+v %+v", got[0], got[1])
	}
	if got[0].CN0 != 30 {
		t.Errorf("Expected CN0 30, got %v", got[0].CN0)
	}
	if got[63].Constellation != ConstellationSBAS {
		t.Errorf("Expected PRN 64 to be SBAS, got %s", got[63].Constellation)
	}
}

func TestLegacySatellitesUsedMask(t *testing.T) {
	sats := []gpsd.Satellite{
		{PRN: 1, Used: true},
		{PRN: 5, Used: false},
		{PRN: 32, Used: true},
		{PRN: 70, Used: true},
	}

	got := legacySatellites(sats)
	if len(got.Satellites) != 4 {
		t.Fatalf("Expected 4 satellites, got %d", len(got.Satellites))
	}
	want := uint32(1<<0 | 1<<31)
	if got.UsedInFixMask != want {
		t.Errorf("UsedInFixMask = %#x, want %#x", got.UsedInFixMask, want)
	}
	if got.EphemerisMask != 0 || got.AlmanacMask != 0 {
		t.Errorf("Expected ephemeris and almanac masks to stay empty")
	}

	many := make([]gpsd.Satellite, 40)
	if n := len(legacySatellites(many).Satellites); n != MaxLegacySatellites {
		t.Errorf("Expected legacy list clamped to %d, got %d", MaxLegacySatellites, n)
	}
}

func TestDeviceActivated(t *testing.T) {
	tests := []struct {
		activated string
		want      bool
	}{
		{"", false},
		{"0", false},
		{"0.000", false},
		{"1478525634.123", true},
		{"2017-10-26T10:00:00.000Z", true},
		{"1970-01-01T00:00:00.000Z", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		if got := deviceActivated(tt.activated); got != tt.want {
			t.Errorf("deviceActivated(%q) = %v, want %v", tt.activated, got, tt.want)
		}
	}
}

func TestLocationFromTPV(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		report    gpsd.TPVReport
		fix       FixQuality
		wantFlags LocationFlags
		wantAcc   float64
	}{
		{
			name:      "3d with everything",
			report:    gpsd.TPVReport{Mode: 3, Time: ts, Lat: 52.5, Lon: 13.4, Alt: 34, Speed: 1.5, Track: 90, Epx: 3, Epy: 5, Epv: 4},
			fix:       Fix3D,
			wantFlags: HasLatLong | HasAltitude | HasSpeed | HasBearing | HasAccuracy,
			wantAcc:   5,
		},
		{
			name:      "vertical error overrides when larger",
			report:    gpsd.TPVReport{Mode: 3, Time: ts, Lat: 52.5, Lon: 13.4, Epx: 3, Epy: 2, Epv: 9},
			fix:       Fix3D,
			wantFlags: HasLatLong | HasAccuracy,
			wantAcc:   9,
		},
		{
			name:      "2d ignores altitude",
			report:    gpsd.TPVReport{Mode: 2, Time: ts, Lat: 52.5, Lon: 13.4, Alt: 34},
			fix:       Fix2D,
			wantFlags: HasLatLong,
		},
		{
			name:      "position without time is not reported",
			report:    gpsd.TPVReport{Mode: 3, Lat: 52.5, Lon: 13.4, Speed: 2},
			fix:       Fix3D,
			wantFlags: HasSpeed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := locationFromTPV(&tt.report, tt.fix)
			if loc.Flags != tt.wantFlags {
				t.Errorf("Flags = %05b, want %05b", loc.Flags, tt.wantFlags)
			}
			if tt.wantFlags&HasAccuracy != 0 && loc.Accuracy != tt.wantAcc {
				t.Errorf("Accuracy = %v, want %v", loc.Accuracy, tt.wantAcc)
			}
			if loc.Has(HasLatLong) && loc.Timestamp != ts.UnixMilli() {
				t.Errorf("Timestamp = %d, want %d", loc.Timestamp, ts.UnixMilli())
			}
		})
	}
}

func TestVersionBufferGrowsOnly(t *testing.T) {
	e, _, _ := newTestEngine(Callbacks{}, 0)

	e.handleReport(&gpsd.VERSIONReport{Release: "3.17", Rev: "3.17"})
	if got := string(e.version); got != "3.17/3.17" {
		t.Fatalf("Expected version 3.17/3.17, got %q", got)
	}
	capBefore := cap(e.version)

	e.handleReport(&gpsd.VERSIONReport{Release: "3.1", Rev: "x"})
	if got := string(e.version); got != "3.1/x" {
		t.Errorf("Expected version 3.1/x, got %q", got)
	}
	if cap(e.version) != capBefore {
		t.Errorf("Shorter version reallocated the buffer: cap %d -> %d", capBefore, cap(e.version))
	}

	long := "3.25.1~dev"
	e.handleReport(&gpsd.VERSIONReport{Release: long, Rev: long})
	if cap(e.version) != len(long)*2+1 {
		t.Errorf("Expected exact reallocation to %d, got cap %d", len(long)*2+1, cap(e.version))
	}
	if s, _ := e.versionSnap.Load().(string); s != long+"/"+long {
		t.Errorf("Snapshot = %q, want %q", s, long+"/"+long)
	}
}
