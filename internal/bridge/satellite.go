package bridge

import "github.com/stratoberry/go-gpsd"

// PRN ranges used by gpsd when numbering satellites.
const (
	gpsFirstPRN    = 1
	gpsLastPRN     = 32
	sbasFirstPRN   = 33
	sbasLastPRN    = 64
	sbasHighFirst  = 120
	sbasHighLast   = 158
	qzssFirstPRN   = 193
	qzssLastPRN    = 200
	beidouFirstPRN = 201
	beidouLastPRN  = 235
	beidouOffset   = 200
)

// classify maps a gpsd PRN to its constellation and the constellation-local
// satellite id.
func (c Config) classify(prn int) (Constellation, int) {
	switch {
	case prn >= gpsFirstPRN && prn <= gpsLastPRN:
		return ConstellationGPS, prn
	case prn >= c.GlonassFirstPRN && prn <= c.GlonassLastPRN:
		return ConstellationGLONASS, prn - (c.GlonassFirstPRN - 1)
	case prn >= sbasFirstPRN && prn <= sbasLastPRN,
		prn >= sbasHighFirst && prn <= sbasHighLast:
		return ConstellationSBAS, prn
	case prn >= qzssFirstPRN && prn <= qzssLastPRN:
		return ConstellationQZSS, prn
	case prn >= beidouFirstPRN && prn <= beidouLastPRN:
		return ConstellationBeiDou, prn - beidouOffset
	default:
		return ConstellationUnknown, prn
	}
}

func (c Config) gnssSatellites(sats []gpsd.Satellite) []Satellite {
	n := len(sats)
	if n > MaxGNSSSatellites {
		n = MaxGNSSSatellites
	}

	out := make([]Satellite, 0, n)
	for _, s := range sats[:n] {
		constellation, svid := c.classify(int(s.PRN))
		out = append(out, Satellite{
			Svid:          svid,
			Constellation: constellation,
			CN0:           float32(s.Ss),
			Elevation:     float32(s.El),
			Azimuth:       float32(s.Az),
			UsedInFix:     s.Used,
		})
	}
	return out
}

func legacySatellites(sats []gpsd.Satellite) LegacySatellites {
	n := len(sats)
	if n > MaxLegacySatellites {
		n = MaxLegacySatellites
	}

	out := LegacySatellites{Satellites: make([]LegacySatellite, 0, n)}
	for _, s := range sats[:n] {
		prn := int(s.PRN)
		out.Satellites = append(out.Satellites, LegacySatellite{
			PRN:       prn,
			SNR:       float32(s.Ss),
			Elevation: float32(s.El),
			Azimuth:   float32(s.Az),
		})
		if s.Used && prn >= gpsFirstPRN && prn <= gpsLastPRN {
			out.UsedInFixMask |= 1 << uint(prn-1)
		}
	}
	return out
}
