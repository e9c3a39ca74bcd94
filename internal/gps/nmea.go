package gps

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentence kinds this decoder understands. Talker prefixes (GP, GN, GL)
// are stripped before matching, so GPGGA and GNGGA route identically.
const (
	sentenceGGA = "GGA" // position/fix data
	sentenceRMC = "RMC" // recommended minimum: course and speed
	sentenceGSA = "GSA" // dilution of precision and active satellites
)

// GGAData is a decoded position/fix sentence.
type GGAData struct {
	Latitude   float64
	Longitude  float64
	FixQuality int
	Satellites int
	HDOP       float64
	Altitude   float64
}

// RMCData is a decoded course sentence. Only "active" sentences carry
// usable speed/course.
type RMCData struct {
	Active    bool
	Latitude  float64
	Longitude float64
	SpeedKmh  float64
	Course    float64
}

// GSAData is a decoded dilution sentence.
type GSAData struct {
	FixType    int // 1 = none, 2 = 2D, 3 = 3D
	Satellites int // count of active satellite PRNs
	PDOP       float64
	HDOP       float64
	VDOP       float64
}

// checksumValid verifies the NMEA XOR checksum when present. Sentences
// without a checksum field are accepted; cheap receivers omit it.
func checksumValid(line string) bool {
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 > len(line) {
		return true
	}
	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return false
	}
	var sum byte
	for i := 1; i < star; i++ {
		sum ^= line[i]
	}
	return sum == byte(want)
}

// sentenceType extracts the three-letter type from a sentence address
// like "$GPGGA", or "" if the line is not an NMEA sentence.
func sentenceType(line string) string {
	if len(line) < 6 || line[0] != '$' {
		return ""
	}
	addr := line[1:strings.IndexAny(line+",", ",")]
	if len(addr) < 5 {
		return ""
	}
	return addr[len(addr)-3:]
}

// fields splits a sentence body, dropping the leading address and the
// trailing checksum.
func fields(line string) []string {
	if star := strings.LastIndexByte(line, '*'); star >= 0 {
		line = line[:star]
	}
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}

// parseCoordinate converts NMEA degrees-minutes (ddmm.mmmm) into decimal
// degrees, negated for the southern and western hemispheres.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" || hemisphere == "" {
		return 0, fmt.Errorf("empty coordinate")
	}

	raw, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q: %w", value, err)
	}

	degrees := float64(int(raw / 100))
	minutes := raw - degrees*100
	decimal := degrees + minutes/60

	switch hemisphere {
	case "N", "E":
	case "S", "W":
		decimal = -decimal
	default:
		return 0, fmt.Errorf("hemisphere %q", hemisphere)
	}
	return decimal, nil
}

// parseGGA decodes a position/fix sentence.
// $GPGGA,time,lat,N,lon,E,quality,sats,hdop,alt,M,geoid,M,,*cs
func parseGGA(line string) (GGAData, error) {
	f := fields(line)
	if len(f) < 9 {
		return GGAData{}, fmt.Errorf("gga: want 9+ fields, got %d", len(f))
	}

	var d GGAData
	var err error

	d.FixQuality = atoiDefault(f[5], 0)
	if d.FixQuality == 0 {
		// No fix yet; satellite count is still worth surfacing.
		d.Satellites = atoiDefault(f[6], 0)
		return d, nil
	}

	if d.Latitude, err = parseCoordinate(f[1], f[2]); err != nil {
		return GGAData{}, fmt.Errorf("gga latitude: %w", err)
	}
	if d.Longitude, err = parseCoordinate(f[3], f[4]); err != nil {
		return GGAData{}, fmt.Errorf("gga longitude: %w", err)
	}
	d.Satellites = atoiDefault(f[6], 0)
	d.HDOP = atofDefault(f[7], 99)
	d.Altitude = atofDefault(f[8], 0)
	return d, nil
}

// parseRMC decodes a course sentence.
// $GPRMC,time,status,lat,N,lon,E,speed,course,date,...*cs
func parseRMC(line string) (RMCData, error) {
	f := fields(line)
	if len(f) < 8 {
		return RMCData{}, fmt.Errorf("rmc: want 8+ fields, got %d", len(f))
	}

	var d RMCData
	d.Active = f[1] == "A"
	if !d.Active {
		return d, nil
	}

	var err error
	if d.Latitude, err = parseCoordinate(f[2], f[3]); err != nil {
		return RMCData{}, fmt.Errorf("rmc latitude: %w", err)
	}
	if d.Longitude, err = parseCoordinate(f[4], f[5]); err != nil {
		return RMCData{}, fmt.Errorf("rmc longitude: %w", err)
	}

	const knotsToKmh = 1.852
	d.SpeedKmh = atofDefault(f[6], 0) * knotsToKmh
	d.Course = atofDefault(f[7], 0)
	return d, nil
}

// parseGSA decodes a dilution sentence.
// $GPGSA,mode,fixtype,prn*12,pdop,hdop,vdop*cs
func parseGSA(line string) (GSAData, error) {
	f := fields(line)
	if len(f) < 17 {
		return GSAData{}, fmt.Errorf("gsa: want 17 fields, got %d", len(f))
	}

	var d GSAData
	d.FixType = atoiDefault(f[1], 1)
	for _, prn := range f[2:14] {
		if prn != "" {
			d.Satellites++
		}
	}
	d.PDOP = atofDefault(f[14], 99)
	d.HDOP = atofDefault(f[15], 99)
	d.VDOP = atofDefault(f[16], 99)
	return d, nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func atofDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
