package ovlbin

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ra1fh/ggvtogpx/internal/model"
)

const (
	// magicPrefix opens every binary overlay, followed by the version
	// digit, ".0:" and a NUL. Example: "DOMGVCRD Ovlfile V3.0:\x00".
	magicPrefix = "DOMGVCRD Ovlfile V"
	magicLen    = 23
)

// Entry type codes. Codes 2 through 7 correspond to the symbol types of the
// ASCII overlay format.
const (
	entryText      uint16 = 0x02
	entryLine      uint16 = 0x03
	entryPolygon   uint16 = 0x04
	entryRectangle uint16 = 0x05
	entryCircle    uint16 = 0x06
	entryTriangle  uint16 = 0x07
	entryBitmap    uint16 = 0x09
	entryLineAlt   uint16 = 0x17 // line variant seen in version 3/4 files
)

// Reader decodes binary Geogrid-Viewer overlay files.
type Reader struct {
	buf []byte
	log *logrus.Logger
}

// NewReader creates a reader for one overlay image. Diagnostics go to log;
// a nil log discards everything below warning level.
func NewReader(buf []byte, log *logrus.Logger) *Reader {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	return &Reader{buf: buf, log: log}
}

// Probe reports whether buf starts with a binary overlay magic.
func Probe(buf []byte) bool {
	_, _, err := parseMagic(buf)
	return err == nil
}

// parseMagic validates the file magic and returns the format version along
// with the printable 22-byte header string. The magic spans 23 bytes
// including the trailing NUL.
func parseMagic(buf []byte) (int, string, error) {
	if len(buf) < magicLen {
		return 0, "", decodeErr(ErrInsufficientData, "magic")
	}
	if string(buf[:len(magicPrefix)]) != magicPrefix {
		return 0, "", decodeErr(ErrMagicMismatch, "magic")
	}
	version := buf[len(magicPrefix)]
	if version < '2' || version > '4' {
		return 0, "", decodeErr(ErrMagicMismatch, "magic")
	}
	if string(buf[len(magicPrefix)+1:magicLen]) != ".0:\x00" {
		return 0, "", decodeErr(ErrMagicMismatch, "magic")
	}
	return int(version - '0'), latin1String(buf[:magicLen-1]), nil
}

// Read decodes the whole overlay and returns the collected geodata. The
// decode is all or nothing: any malformed field fails the entire file.
func (r *Reader) Read() (*model.Geodata, error) {
	geodata := model.NewGeodata()

	version := 0
	if v, _, err := parseMagic(r.buf); err == nil {
		version = v
	}

	var err error
	switch version {
	case 2:
		err = r.readV2(geodata)
	case 3, 4:
		err = r.readV34(geodata)
	default:
		return nil, &DecodeError{Trail: []string{"magic"}, Err: ErrMagicMismatch}
	}
	if err != nil {
		var decodeError *DecodeError
		if errors.As(err, &decodeError) {
			decodeError.Version = version
		}
		return nil, err
	}
	return geodata, nil
}
