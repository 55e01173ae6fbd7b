package ovltext

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/elliotwutingfeng/asciiset"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/ra1fh/ggvtogpx/internal/model"
)

// SymbolType identifies the drawing object of a [Symbol N] section.
type SymbolType uint8

const (
	SymbolBitmap SymbolType = iota + 1
	SymbolText
	SymbolLine
	SymbolPolygon
	SymbolRectangle
	SymbolCircle
	SymbolTriangle
)

func (t SymbolType) String() string {
	switch t {
	case SymbolBitmap:
		return "Bitmap"
	case SymbolText:
		return "Text"
	case SymbolLine:
		return "Line"
	case SymbolPolygon:
		return "Polygon"
	case SymbolRectangle:
		return "Rectangle"
	case SymbolCircle:
		return "Circle"
	case SymbolTriangle:
		return "Triangle"
	}
	return fmt.Sprintf("SymbolType(%d)", uint8(t))
}

var keyChars, _ = asciiset.MakeASCIISet(
	"0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// Probe reports whether buf looks like an ASCII overlay file.
func Probe(buf []byte) bool {
	return bytes.HasPrefix(buf, []byte("[Symbol")) || bytes.HasPrefix(buf, []byte("[Overlay"))
}

// Reader parses ASCII overlay files. Sections map symbol numbers to
// key/value pairs, all decoded from Latin-1.
type Reader struct {
	buf     []byte
	log     *logrus.Logger
	decoder *encoding.Decoder
}

func NewReader(buf []byte, log *logrus.Logger) *Reader {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	return &Reader{
		buf:     buf,
		log:     log,
		decoder: charmap.ISO8859_1.NewDecoder(),
	}
}

// Read parses the overlay sections and converts them to geodata.
func (r *Reader) Read() (*model.Geodata, error) {
	sections := r.parse()
	r.log.Tracef("ovl: input size: %d", len(r.buf))
	geodata, err := r.process(sections)
	if err != nil {
		return nil, fmt.Errorf("reading ggv_ovl failed (function: process, context: \"%w\")", err)
	}
	return geodata, nil
}

// parse splits the input into "[name]" sections holding "key = value"
// pairs. Keys are alphanumeric, values run to the end of the line or to
// a ";" comment, and both are trimmed. A line that fits neither form
// stops the parse, keeping the sections read so far. A repeated section
// name replaces the earlier section entirely.
func (r *Reader) parse() map[string]map[string]string {
	sections := make(map[string]map[string]string)
	var current map[string]string

	scanner := bufio.NewScanner(bytes.NewReader(r.buf))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			// Blank lines are only valid once a section is open.
			if current == nil {
				break
			}
			continue
		}
		if line[0] == '[' {
			end := bytes.IndexByte(line, ']')
			if end < 0 {
				break
			}
			name := strings.TrimSpace(r.decode(line[1:end]))
			current = make(map[string]string)
			sections[name] = current
			rest := bytes.TrimSpace(line[end+1:])
			if len(rest) > 0 && !r.parseKeyValue(rest, current) {
				break
			}
			continue
		}
		if current == nil || !r.parseKeyValue(line, current) {
			break
		}
	}
	return sections
}

// parseKeyValue parses one "key = value ; comment" line into section
// and reports whether it matched.
func (r *Reader) parseKeyValue(line []byte, section map[string]string) bool {
	n := 0
	for n < len(line) && keyChars.Contains(line[n]) {
		n++
	}
	if n == 0 {
		return false
	}
	rest := bytes.TrimLeft(line[n:], " \t")
	if len(rest) == 0 || rest[0] != '=' {
		return false
	}
	value := rest[1:]
	if i := bytes.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	key := strings.TrimSpace(r.decode(line[:n]))
	section[key] = strings.TrimSpace(r.decode(value))
	return true
}

func (r *Reader) decode(b []byte) string {
	s, err := r.decoder.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// process walks the symbol sections in order. Line and Polygon symbols
// become tracks, or routes when their group is above one. Text and the
// shape symbols become waypoints. Bitmap symbols carry no geometry and
// are skipped.
func (r *Reader) process(sections map[string]map[string]string) (*model.Geodata, error) {
	geodata := model.NewGeodata()
	routeCount := 1
	trackCount := 1
	waypointCount := 1

	overlay, ok := sections["Overlay"]
	if !ok {
		return nil, errors.New("Overlay missing")
	}
	symbolsValue, ok := overlay["Symbols"]
	if !ok {
		return nil, errors.New("Symbols missing")
	}
	symbols, err := strconv.ParseUint(symbolsValue, 10, 16)
	if err != nil {
		return nil, errors.New("Symbols u16")
	}
	r.log.Debugf("ovl: Symbols: %d", symbols)

	for i := 1; i <= int(symbols); i++ {
		key := fmt.Sprintf("Symbol %d", i)
		symbol, ok := sections[key]
		if !ok {
			return nil, fmt.Errorf("%s missing", key)
		}
		r.log.Debugf("ovl: === %s ===", key)

		typValue, ok := symbol["Typ"]
		if !ok {
			return nil, fmt.Errorf("%s, Typ", key)
		}
		typInt, err := strconv.ParseUint(typValue, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%s, Typ int", key)
		}
		typ := SymbolType(typInt)
		if typ < SymbolBitmap || typ > SymbolTriangle {
			return nil, fmt.Errorf("%s, Typ enum", key)
		}
		r.log.Debugf("ovl: type: %s (%d)", typ, typInt)

		switch typ {
		case SymbolLine, SymbolPolygon:
			groupValue, ok := symbol["Group"]
			if !ok {
				return nil, fmt.Errorf("%s, Group", key)
			}
			group, err := strconv.ParseUint(groupValue, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%s, Group u16", key)
			}
			r.log.Debugf("ovl: Group: %d", group)

			pointsValue, ok := symbol["Punkte"]
			if !ok {
				return nil, fmt.Errorf("%s, Punkte", key)
			}
			points, err := strconv.ParseUint(pointsValue, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%s, Punkte u16", key)
			}
			r.log.Debugf("ovl: Punkte: %d", points)

			var list model.WaypointList
			for j := 0; j < int(points); j++ {
				latValue, ok := symbol[fmt.Sprintf("YKoord%d", j)]
				if !ok {
					return nil, fmt.Errorf("%s, YKoord%d", key, j)
				}
				lat, err := strconv.ParseFloat(latValue, 64)
				if err != nil {
					return nil, fmt.Errorf("%s, YKoord%d f64", key, j)
				}
				lonValue, ok := symbol[fmt.Sprintf("XKoord%d", j)]
				if !ok {
					return nil, fmt.Errorf("%s, XKoord%d", key, j)
				}
				lon, err := strconv.ParseFloat(lonValue, 64)
				if err != nil {
					return nil, fmt.Errorf("%s, XKoord%d f64", key, j)
				}
				waypoint := model.Waypoint{Lat: lat, Lon: lon}
				if group > 1 {
					waypoint.Name = fmt.Sprintf("RPT%03d", waypointCount)
					waypointCount++
				}
				list.Waypoints = append(list.Waypoints, waypoint)
				r.log.Tracef("ovl: YKoord/Lat: %09.5f, XKoord/Lon: %08.5f", lat, lon)
			}
			if text, ok := symbol["Text"]; ok {
				list.Name = text
			} else if group > 1 {
				list.Name = fmt.Sprintf("Route %d", routeCount)
				routeCount++
			} else {
				list.Name = fmt.Sprintf("Track %d", trackCount)
				trackCount++
			}
			if group > 1 {
				geodata.AddRoute(list)
			} else {
				geodata.AddTrack(list)
			}

		case SymbolText, SymbolRectangle, SymbolCircle, SymbolTriangle:
			latValue, ok := symbol["YKoord"]
			if !ok {
				return nil, fmt.Errorf("%s, YKoord", key)
			}
			lat, err := strconv.ParseFloat(latValue, 64)
			if err != nil {
				return nil, fmt.Errorf("%s, YKoord f64", key)
			}
			lonValue, ok := symbol["XKoord"]
			if !ok {
				return nil, fmt.Errorf("%s, XKoord", key)
			}
			lon, err := strconv.ParseFloat(lonValue, 64)
			if err != nil {
				return nil, fmt.Errorf("%s, XKoord f64", key)
			}
			r.log.Tracef("ovl: YKoord/Lat: %09.5f, XKoord/Lon: %08.5f", lat, lon)

			waypoint := model.Waypoint{Lat: lat, Lon: lon}
			if text, ok := symbol["Text"]; ok {
				waypoint.Name = text
			} else {
				waypoint.Name = key
			}
			geodata.AddWaypoint(waypoint)

		case SymbolBitmap:
			// Bitmap symbols reference external images and carry no
			// usable geometry.
		}
	}
	return geodata, nil
}
