package ovlbin

import (
	"bytes"
	"fmt"

	"github.com/ra1fh/ggvtogpx/internal/img"
	"github.com/ra1fh/ggvtogpx/internal/model"
)

// readV2 decodes a version 2 overlay into geodata.
func (r *Reader) readV2(geodata *model.Geodata) error {
	c := newCursor(r.buf, r.log)
	c.magic()
	readHeaderV2(c)
	for c.err == nil && c.remaining() > 0 {
		c.log.Debugf("------------------------------------ 0x%x", c.pos())
		entryType := c.u16("entry type")
		c.u16("entry group")
		c.u16("entry zoom")
		entrySubtype := c.u16("entry subtype")

		// Subtype 1 entries have no name block.
		trackName := ""
		if entrySubtype != 1 {
			trackName = c.text32("track name")
		}
		readEntryV2(c, entryType, trackName, geodata)
	}
	return c.err
}

// readHeaderV2 consumes the optional map name block after the magic.
func readHeaderV2(c *cursor) {
	nameLen := c.u16("map name len")
	if c.err != nil || nameLen == 0 {
		return
	}
	block := c.take(int(nameLen), "map name")
	if block == nil {
		return
	}
	if len(block) < 4 {
		c.fail(ErrInsufficientData, "map name")
		return
	}
	name := block[4:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	c.log.Debugf("bin: name = %q", latin1String(name))
}

// readEntryV2 decodes a single entry body of the given type.
func readEntryV2(c *cursor, entryType uint16, trackName string, geodata *model.Geodata) {
	if c.err != nil {
		return
	}
	switch entryType {
	case entryText:
		c.u16("text color")
		c.u16("text size")
		c.u16("text trans")
		c.u16("text font")
		c.u16("text angle")
		lon := c.f64("text lon")
		lat := c.f64("text lat")
		label := c.text16("text label")
		if c.err != nil {
			return
		}
		geodata.AddWaypoint(model.Waypoint{Lat: lat, Lon: lon, Name: label})

	case entryLine, entryPolygon:
		c.u16("line color")
		c.u16("line width")
		c.u16("line type")
		linePoints := c.u16("line points")
		track := model.WaypointList{Name: trackName}
		for i := 0; i < int(linePoints); i++ {
			lon := c.f64("text lon")
			lat := c.f64("text lat")
			if c.err != nil {
				return
			}
			track.Waypoints = append(track.Waypoints, model.Waypoint{Lat: lat, Lon: lon})
		}
		geodata.AddTrack(track)

	case entryRectangle, entryCircle, entryTriangle:
		// Point geometry without a GPX counterpart, consumed and dropped.
		c.u16("geom color")
		c.u16("geom prop1")
		c.u16("geom prop2")
		c.u16("geom angle")
		c.u16("geom stroke")
		c.u16("geom area")
		c.f64("geom lon")
		c.f64("geom lat")

	case entryBitmap:
		c.u16("bmp color")
		c.u16("bmp prop1")
		c.u16("bmp prop2")
		c.u16("bmp prop3")
		c.f64("bmp lon")
		c.f64("bmp lat")
		bmpLen := c.u32("bmp len")
		if c.err == nil && bmpLen > maxTextLen {
			c.log.Warnf("bin: Read error, max bmp_len exceeded")
			c.fail(ErrFieldTooLarge, "bmp len")
		}
		blob := c.take(int(bmpLen), "bmp data")
		if c.err != nil {
			return
		}
		// Malformed bitmaps are dropped, never fatal.
		if data, err := img.ExtractBMP(blob); err == nil && data != nil {
			geodata.AddResource("bmp", data)
			c.log.Debugf("bin: bmp resource %d bytes", len(data))
		}

	default:
		c.log.Warnf("bin: Unsupported type: %x", entryType)
		c.fail(ErrUnsupportedEntry, fmt.Sprintf("entry type 0x%x", entryType))
	}
}
