package ovlbin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Fixture builders. Overlay files are little-endian throughout.

func u16b(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func f64b(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func text16b(s string) []byte {
	return append(u16b(uint16(len(s))), s...)
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

const (
	magicV2 = "DOMGVCRD Ovlfile V2.0:\x00"
	magicV3 = "DOMGVCRD Ovlfile V3.0:\x00"
	magicV4 = "DOMGVCRD Ovlfile V4.0:\x00"
)

// v2Entry builds the fixed prefix of a version 2 entry.
func v2Entry(entryType, subtype uint16) []byte {
	return cat(u16b(entryType), u16b(1), u16b(1), u16b(subtype))
}

// v34Header builds a version 3/4 block header with the given label and
// record counts. A map name block of nameLen bytes must follow if nonzero.
func v34Header(labels, records uint32, nameLen uint16) []byte {
	return cat(
		make([]byte, 8), // unknown
		u32b(labels),
		u32b(records),
		text16b(""),      // text label
		u16b(0), u16b(0), // unknown
		u16b(0),       // unknown
		u16b(nameLen), // header len
		u16b(0), u16b(0), // unknown
	)
}

// v34Common builds the record prefix shared by all record types.
func v34Common(text string) []byte {
	return cat(
		u16b(1), u16b(0), u16b(0), u16b(0), u16b(0),
		u16b(0), u16b(0), u16b(0), u16b(0), u16b(0),
		text16b(text),
		u16b(1), u16b(1), // type1, type2
	)
}

// buildDIB returns a minimal bitmap blob with a BITMAPINFOHEADER.
func buildDIB() []byte {
	dib := make([]byte, 40)
	binary.LittleEndian.PutUint32(dib[0:], 40) // dib size
	binary.LittleEndian.PutUint32(dib[4:], 1)  // width
	binary.LittleEndian.PutUint32(dib[8:], 1)  // height
	binary.LittleEndian.PutUint16(dib[12:], 1) // planes
	binary.LittleEndian.PutUint16(dib[14:], 24)
	return append(dib, 0x11, 0x22, 0x33)
}

// TestProbe tests magic detection over all versions
func TestProbe(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"v2", []byte(magicV2), true},
		{"v3", []byte(magicV3), true},
		{"v4", []byte(magicV4), true},
		{"truncated", []byte(magicV3[:22]), false},
		{"version 5", []byte("DOMGVCRD Ovlfile V5.0:\x00"), false},
		{"text overlay", []byte("[Symbol 1]\r\nTyp=3\r\n"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		if got := Probe(tt.buf); got != tt.want {
			t.Errorf("Probe(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestReadV2Waypoint tests decoding a single text entry
func TestReadV2Waypoint(t *testing.T) {
	buf := cat(
		[]byte(magicV2),
		u16b(0), // no map name
		v2Entry(2, 1),
		u16b(0), u16b(0), u16b(0), u16b(0), u16b(0), // color, size, trans, font, angle
		f64b(13.4),  // lon
		f64b(52.52), // lat
		text16b("Berlin"),
	)

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(geodata.Waypoints) != 1 {
		t.Fatalf("Got %d waypoints, want 1", len(geodata.Waypoints))
	}
	waypoint := geodata.Waypoints[0]
	if waypoint.Name != "Berlin" {
		t.Errorf("Name = %q, want %q", waypoint.Name, "Berlin")
	}
	if waypoint.Lat != 52.52 {
		t.Errorf("Lat = %v, want 52.52", waypoint.Lat)
	}
	if waypoint.Lon != 13.4 {
		t.Errorf("Lon = %v, want 13.4", waypoint.Lon)
	}
	if waypoint.Elevation != nil {
		t.Errorf("Elevation = %v, want nil", *waypoint.Elevation)
	}
}

// TestReadV2Track tests decoding a named line entry
func TestReadV2Track(t *testing.T) {
	name := "Tour"
	buf := cat(
		[]byte(magicV2),
		u16b(0),
		v2Entry(3, 0), // subtype != 1 carries a name block
		u32b(uint32(len(name))), []byte(name),
		u16b(0), u16b(0), u16b(0), // color, width, type
		u16b(2), // points
		f64b(11.5), f64b(48.1),
		f64b(11.6), f64b(48.2),
	)

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(geodata.Tracks) != 1 {
		t.Fatalf("Got %d tracks, want 1", len(geodata.Tracks))
	}
	track := geodata.Tracks[0]
	if track.Name != "Tour" {
		t.Errorf("Name = %q, want %q", track.Name, "Tour")
	}
	if len(track.Waypoints) != 2 {
		t.Fatalf("Got %d points, want 2", len(track.Waypoints))
	}
	if track.Waypoints[0].Lat != 48.1 || track.Waypoints[0].Lon != 11.5 {
		t.Errorf("point 0 = %v/%v, want 48.1/11.5",
			track.Waypoints[0].Lat, track.Waypoints[0].Lon)
	}
	if track.Waypoints[1].Elevation != nil {
		t.Errorf("point 1 Elevation != nil")
	}
}

// TestReadV2MapName tests skipping the optional map name block
func TestReadV2MapName(t *testing.T) {
	buf := cat([]byte(magicV2), u16b(10), []byte("xxxxMap1\x00y"))

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(geodata.Waypoints) != 0 || len(geodata.Tracks) != 0 {
		t.Errorf("Got %d waypoints and %d tracks, want none",
			len(geodata.Waypoints), len(geodata.Tracks))
	}
}

// TestReadV2MapNameShort tests that a name block shorter than its skip
// prefix fails cleanly
func TestReadV2MapNameShort(t *testing.T) {
	buf := cat([]byte(magicV2), u16b(3), []byte("abc"))

	_, err := NewReader(buf, testLogger()).Read()
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Read error = %v, want ErrInsufficientData", err)
	}
}

// TestReadV2Unsupported tests the failure on an unknown entry type
func TestReadV2Unsupported(t *testing.T) {
	buf := cat([]byte(magicV2), u16b(0), v2Entry(0xff, 1))

	_, err := NewReader(buf, testLogger()).Read()
	if !errors.Is(err, ErrUnsupportedEntry) {
		t.Fatalf("Read error = %v, want ErrUnsupportedEntry", err)
	}

	var decodeError *DecodeError
	if !errors.As(err, &decodeError) {
		t.Fatalf("Read error type = %T, want *DecodeError", err)
	}
	if decodeError.Version != 2 {
		t.Errorf("Version = %d, want 2", decodeError.Version)
	}
	want := `reading ggv_bin failed (version: 2, context: "entry type 0xff")`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestReadV2Truncated tests that a file cut inside a coordinate fails with
// insufficient data
func TestReadV2Truncated(t *testing.T) {
	buf := cat(
		[]byte(magicV2),
		u16b(0),
		v2Entry(2, 1),
		u16b(0), u16b(0), u16b(0), u16b(0), u16b(0),
		f64b(13.4), f64b(52.52),
		text16b("Berlin"),
	)

	_, err := NewReader(buf[:len(buf)-12], testLogger()).Read()
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Read error = %v, want ErrInsufficientData", err)
	}
}

// TestReadV2Bitmap tests bitmap extraction into a resource
func TestReadV2Bitmap(t *testing.T) {
	dib := buildDIB()
	buf := cat(
		[]byte(magicV2),
		u16b(0),
		v2Entry(9, 1),
		u16b(0), u16b(0), u16b(0), u16b(0), // color, prop1..prop3
		f64b(13.0), f64b(52.0),
		u32b(uint32(len(dib))), dib,
	)

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(geodata.Resources) != 1 {
		t.Fatalf("Got %d resources, want 1", len(geodata.Resources))
	}
	resource := geodata.Resources[0]
	if resource.Name != "bmp" {
		t.Errorf("Name = %q, want %q", resource.Name, "bmp")
	}
	if len(resource.Data) != len(dib)+14 {
		t.Errorf("Data length = %d, want %d", len(resource.Data), len(dib)+14)
	}
}

// TestReadV2BitmapCap tests that an oversized bitmap length fails before
// the payload is read
func TestReadV2BitmapCap(t *testing.T) {
	buf := cat(
		[]byte(magicV2),
		u16b(0),
		v2Entry(9, 1),
		u16b(0), u16b(0), u16b(0), u16b(0),
		f64b(13.0), f64b(52.0),
		u32b(65536), // no payload follows
	)

	_, err := NewReader(buf, testLogger()).Read()
	if !errors.Is(err, ErrFieldTooLarge) {
		t.Errorf("Read error = %v, want ErrFieldTooLarge", err)
	}
}

// TestReadV2TrackNameCap tests the length cap on 32-bit name blocks
func TestReadV2TrackNameCap(t *testing.T) {
	buf := cat(
		[]byte(magicV2),
		u16b(0),
		v2Entry(3, 0),
		u32b(1<<20), // no payload follows
	)

	_, err := NewReader(buf, testLogger()).Read()
	if !errors.Is(err, ErrFieldTooLarge) {
		t.Errorf("Read error = %v, want ErrFieldTooLarge", err)
	}
}

// TestReadV3Track tests decoding a version 3 line record
func TestReadV3Track(t *testing.T) {
	record := cat(
		u16b(0x03),
		v34Common("Line 1"),
		u16b(0), u32b(0), u16b(0), u32b(0), u16b(0), u16b(0),
		u16b(2), // points
		f64b(11.5), f64b(48.1), f64b(0),
		f64b(11.6), f64b(48.2), f64b(0),
	)
	buf := cat([]byte(magicV3), v34Header(0, 1, 0), record)

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(geodata.Tracks) != 1 {
		t.Fatalf("Got %d tracks, want 1", len(geodata.Tracks))
	}
	track := geodata.Tracks[0]
	if track.Name != "Line 1" {
		t.Errorf("Name = %q, want %q", track.Name, "Line 1")
	}
	if len(track.Waypoints) != 2 {
		t.Fatalf("Got %d points, want 2", len(track.Waypoints))
	}
	if track.Waypoints[1].Lat != 48.2 || track.Waypoints[1].Lon != 11.6 {
		t.Errorf("point 1 = %v/%v, want 48.2/11.6",
			track.Waypoints[1].Lat, track.Waypoints[1].Lon)
	}
	for i, waypoint := range track.Waypoints {
		if waypoint.Elevation != nil {
			t.Errorf("point %d Elevation != nil", i)
		}
	}
}

// TestReadV3Waypoint tests that the trailing label names a text record
func TestReadV3Waypoint(t *testing.T) {
	record := cat(
		u16b(0x02),
		v34Common("ignored"),
		u16b(0), u32b(0), u16b(0), u32b(0),
		u16b(0), u16b(0), u16b(0), u16b(0), // ltype, angle, size, area
		f64b(13.4), f64b(52.52), f64b(0),
		text16b("Berlin"),
	)
	buf := cat([]byte(magicV3), v34Header(0, 1, 0), record)

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(geodata.Waypoints) != 1 {
		t.Fatalf("Got %d waypoints, want 1", len(geodata.Waypoints))
	}
	if geodata.Waypoints[0].Name != "Berlin" {
		t.Errorf("Name = %q, want %q", geodata.Waypoints[0].Name, "Berlin")
	}
}

// TestReadV4MultiBlock tests label tables, the polygon pad word and the
// unvalidated magic skip between blocks
func TestReadV4MultiBlock(t *testing.T) {
	label := cat(
		make([]byte, 8),    // label header
		make([]byte, 0x14), // label number
		text16b("L1"),
		u16b(0), u16b(0), // flags
	)
	polygon := cat(
		u16b(0x04),
		v34Common("Area"),
		u16b(0), u32b(0), u16b(0), u32b(0), u16b(0), u16b(0),
		u16b(1), // points
		u16b(0), // pad
		f64b(7.1), f64b(50.7), f64b(0),
	)
	waypoint := cat(
		u16b(0x02),
		v34Common(""),
		u16b(0), u32b(0), u16b(0), u32b(0),
		u16b(0), u16b(0), u16b(0), u16b(0),
		f64b(6.9), f64b(50.9), f64b(0),
		text16b("P2"),
	)
	buf := cat(
		[]byte(magicV4),
		v34Header(1, 1, 0), label, polygon,
		[]byte(magicV4), // skipped without validation
		v34Header(0, 1, 0), waypoint,
	)

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(geodata.Tracks) != 1 {
		t.Fatalf("Got %d tracks, want 1", len(geodata.Tracks))
	}
	if geodata.Tracks[0].Name != "Area" {
		t.Errorf("track Name = %q, want %q", geodata.Tracks[0].Name, "Area")
	}
	if len(geodata.Waypoints) != 1 {
		t.Fatalf("Got %d waypoints, want 1", len(geodata.Waypoints))
	}
	if geodata.Waypoints[0].Name != "P2" {
		t.Errorf("waypoint Name = %q, want %q", geodata.Waypoints[0].Name, "P2")
	}
}

// TestReadV3TruncatedLine tests that a line declaring more points than the
// buffer holds fails with insufficient data and a full context trail
func TestReadV3TruncatedLine(t *testing.T) {
	record := cat(
		u16b(0x03),
		v34Common(""),
		u16b(0), u32b(0), u16b(0), u32b(0), u16b(0), u16b(0),
		u16b(5), // points, only 2 present
		f64b(11.5), f64b(48.1), f64b(0),
		f64b(11.6), f64b(48.2), f64b(0),
	)
	buf := cat([]byte(magicV3), v34Header(0, 1, 0), record)

	_, err := NewReader(buf, testLogger()).Read()
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Read error = %v, want ErrInsufficientData", err)
	}
	want := `reading ggv_bin failed (version: 3, context: "line lon, record, block 1")`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestReadV34MapName tests a block header carrying a map name
func TestReadV34MapName(t *testing.T) {
	buf := cat([]byte(magicV3), v34Header(0, 0, 8), []byte("xxxxAB\x00z"))

	geodata, err := NewReader(buf, testLogger()).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(geodata.Waypoints) != 0 {
		t.Errorf("Got %d waypoints, want 0", len(geodata.Waypoints))
	}
}

// TestReadUnknownVersion tests the failure on unrecognized input
func TestReadUnknownVersion(t *testing.T) {
	_, err := NewReader([]byte("not an overlay"), testLogger()).Read()
	if !errors.Is(err, ErrMagicMismatch) {
		t.Fatalf("Read error = %v, want ErrMagicMismatch", err)
	}

	var decodeError *DecodeError
	if !errors.As(err, &decodeError) {
		t.Fatalf("Read error type = %T, want *DecodeError", err)
	}
	if decodeError.Version != 0 {
		t.Errorf("Version = %d, want 0", decodeError.Version)
	}
}
