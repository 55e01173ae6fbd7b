package ovlbin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// maxTextLen caps 32-bit length fields before their payload is read. A
// larger value means the file is almost certainly corrupted, and rejecting
// it early keeps a bogus length from triggering a huge allocation.
const maxTextLen = 65535

// cursor consumes a byte buffer field by field. The first failed read
// sticks in err and turns all further reads into no-ops.
type cursor struct {
	buf     []byte // Unread remainder of the input
	size    int    // Total input size, for offset reporting
	err     error
	log     *logrus.Logger
	decoder *encoding.Decoder // Text decoder for embedded strings
}

func newCursor(buf []byte, log *logrus.Logger) *cursor {
	return &cursor{
		buf:     buf,
		size:    len(buf),
		log:     log,
		decoder: charmap.ISO8859_1.NewDecoder(),
	}
}

// pos returns the offset of the next unread byte.
func (c *cursor) pos() int {
	return c.size - len(c.buf)
}

// remaining returns the number of unread bytes.
func (c *cursor) remaining() int {
	return len(c.buf)
}

// fail records cause for field unless an earlier failure already stuck.
func (c *cursor) fail(cause error, field string) {
	if c.err == nil {
		c.err = decodeErr(cause, field)
	}
}

// context appends an outer label to the trail of a stuck failure, so
// the error reads innermost field first, e.g. "line lat, record, block 2".
func (c *cursor) context(label string) {
	var decodeError *DecodeError
	if errors.As(c.err, &decodeError) {
		decodeError.Trail = append(decodeError.Trail, label)
	}
}

// take consumes n raw bytes. It returns nil after any failure.
func (c *cursor) take(n int, field string) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || len(c.buf) < n {
		c.err = decodeErr(ErrInsufficientData, field)
		return nil
	}
	b := c.buf[:n:n]
	c.buf = c.buf[n:]
	return b
}

// u16 consumes a little-endian uint16.
func (c *cursor) u16(field string) uint16 {
	b := c.take(2, field)
	if b == nil {
		return 0
	}
	v := binary.LittleEndian.Uint16(b)
	c.log.Debugf("bin: %-15s %5d (0x%04x)", field, v, v)
	return v
}

// u32 consumes a little-endian uint32.
func (c *cursor) u32(field string) uint32 {
	b := c.take(4, field)
	if b == nil {
		return 0
	}
	v := binary.LittleEndian.Uint32(b)
	if v&0xFFFF0000 == 0 {
		c.log.Debugf("bin: %-15s %5d (0x%04x)", field, v, v)
	} else {
		c.log.Debugf("bin: %-15s %5d (0x%08x)", field, v, v)
	}
	return v
}

// f64 consumes a little-endian float64.
func (c *cursor) f64(field string) float64 {
	b := c.take(8, field)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// text16 consumes a 16-bit length-prefixed string and normalizes it.
func (c *cursor) text16(field string) string {
	n := c.u16(field)
	b := c.take(int(n), field)
	if b == nil {
		return ""
	}
	s := c.normalize(b)
	c.log.Debugf("bin: %s = %q", field, s)
	return s
}

// text32 consumes a 32-bit length-prefixed string and normalizes it. Length
// fields beyond maxTextLen are rejected before the payload is touched.
func (c *cursor) text32(field string) string {
	n := c.u32(field)
	if c.err != nil {
		return ""
	}
	if n > maxTextLen {
		c.log.Warnf("bin: Read error, max len exceeded (%s)", field)
		c.fail(ErrFieldTooLarge, field)
		return ""
	}
	b := c.take(int(n), field)
	if b == nil {
		return ""
	}
	s := c.normalize(b)
	c.log.Debugf("bin: %s = %q", field, s)
	return s
}

// magic consumes the 23-byte file magic and logs its printable part.
func (c *cursor) magic() {
	if c.err != nil {
		return
	}
	_, header, err := parseMagic(c.buf)
	if err != nil {
		c.err = err
		return
	}
	c.buf = c.buf[magicLen:]
	c.log.Debugf("bin: header = %s", header)
}

// normalize turns raw string bytes into a clean single-line label: the
// bytes are cut at the first NUL, decoded as Latin-1, line breaks become
// spaces, space runs collapse, and control characters are dropped.
func (c *cursor) normalize(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	decoded, _ := c.decoder.Bytes(raw)
	s := strings.ReplaceAll(string(decoded), "\r\n", " ")
	words := strings.Split(s, " ")
	parts := words[:0]
	for _, w := range words {
		if w != "" {
			parts = append(parts, w)
		}
	}
	s = strings.Join(parts, " ")
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// latin1String decodes bytes as Latin-1 without any cleanup.
func latin1String(b []byte) string {
	s, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(s)
}
