package ovlbin

import (
	"bytes"
	"fmt"

	"github.com/ra1fh/ggvtogpx/internal/img"
	"github.com/ra1fh/ggvtogpx/internal/model"
)

// readV34 decodes a version 3 or 4 overlay into geodata. These files are a
// sequence of blocks, each with its own header, label table and records.
func (r *Reader) readV34(geodata *model.Geodata) error {
	c := newCursor(r.buf, r.log)
	c.magic()
	for block := 1; c.err == nil && c.remaining() > 0; block++ {
		labelCount, recordCount := readHeaderV34(c)
		if labelCount > 0 && c.err == nil {
			c.log.Debugf("-----labels------------------------- 0x%x", c.pos())
			for i := uint32(0); i < labelCount && c.err == nil; i++ {
				readLabelV34(c)
			}
			c.context("label")
		}
		if recordCount > 0 && c.err == nil {
			c.log.Debugf("-----records------------------------ 0x%x", c.pos())
			for i := uint32(0); i < recordCount && c.err == nil; i++ {
				readRecordV34(c, geodata)
			}
			c.context("record")
		}
		if c.err == nil && c.remaining() > 0 {
			c.log.Debugf("------------------------------------ 0x%x", c.pos())
			// The next block repeats the magic. It is skipped without
			// validation, consistent with what Geogrid-Viewer does.
			if b := c.take(magicLen, "magicbytes"); b != nil {
				c.log.Debugf("bin: header = %s", latin1String(b))
			}
		}
		c.context(fmt.Sprintf("block %d", block))
	}
	return c.err
}

// readHeaderV34 consumes one block header and returns the label and record
// counts that follow it.
func readHeaderV34(c *cursor) (labelCount, recordCount uint32) {
	c.take(8, "unknown")
	labelCount = c.u32("num labels")
	recordCount = c.u32("num records")
	c.text16("text label")
	c.u16("unknown")
	c.u16("unknown")
	// 8 bytes ending with 1E 00, containing the header block length
	c.u16("unknown")
	headerLen := c.u16("header len")
	c.u16("unknown")
	c.u16("unknown")
	if headerLen > 0 {
		block := c.take(int(headerLen), "map name")
		if block == nil {
			return labelCount, recordCount
		}
		if len(block) < 4 {
			c.fail(ErrInsufficientData, "map name")
			return labelCount, recordCount
		}
		name := block[4:]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		c.log.Debugf("bin: name = %q", latin1String(name))
	}
	return labelCount, recordCount
}

// readLabelV34 consumes one entry of the label table.
func readLabelV34(c *cursor) {
	if c.err != nil {
		return
	}
	c.log.Debugf("------------------------------------ 0x%x", c.pos())
	c.take(0x08, "label header")
	c.take(0x14, "label number")
	c.text16("label text")
	c.u16("label flag1")
	c.u16("label flag2")
}

// readCommonV34 consumes the record prefix shared by all entry types and
// returns the record text.
func readCommonV34(c *cursor) string {
	c.u16("entry group")
	c.u16("entry prop2")
	c.u16("entry prop3")
	c.u16("entry prop4")
	c.u16("entry prop5")
	c.u16("entry prop6")
	c.u16("entry prop7")
	c.u16("entry prop8")
	c.u16("entry zoom")
	c.u16("entry prop10")
	text := c.text16("entry txt")
	if t := c.u16("entry type1"); c.err == nil && t != 1 {
		c.text32("entry object")
	}
	if t := c.u16("entry type2"); c.err == nil && t != 1 {
		c.text32("entry object")
	}
	return text
}

// readRecordV34 decodes a single record.
func readRecordV34(c *cursor, geodata *model.Geodata) {
	if c.err != nil {
		return
	}
	c.log.Debugf("------------------------------------ 0x%x", c.pos())
	entryType := c.u16("entry type")
	label := readCommonV34(c)

	switch entryType {
	case entryText:
		c.u16("text prop1")
		c.u32("text prop2")
		c.u16("text prop3")
		c.u32("text prop4")
		c.u16("text ltype")
		c.u16("text angle")
		c.u16("text size")
		c.u16("text area")
		lon := c.f64("text lon")
		lat := c.f64("text lat")
		c.f64("text unk")
		txt := c.text16("text label")
		if c.err != nil {
			return
		}
		geodata.AddWaypoint(model.Waypoint{Lat: lat, Lon: lon, Name: txt})

	case entryLine, entryPolygon, entryLineAlt:
		c.u16("line prop1")
		c.u32("line prop2")
		c.u16("line prop3")
		c.u32("line color")
		c.u16("line size")
		c.u16("line stroke")
		linePoints := c.u16("line points")
		if entryType == entryPolygon {
			// Extra pad word written by Geogrid-Viewer 1.0.
			c.u16("line pad")
		}
		track := model.WaypointList{Name: label}
		for i := 0; i < int(linePoints); i++ {
			lon := c.f64("line lon")
			lat := c.f64("line lat")
			c.f64("line unk")
			if c.err != nil {
				return
			}
			track.Waypoints = append(track.Waypoints, model.Waypoint{Lat: lat, Lon: lon})
		}
		geodata.AddTrack(track)

	case entryRectangle, entryCircle, entryTriangle:
		// Point geometry without a GPX counterpart, consumed and dropped.
		c.u16("circle prop1")
		c.u32("circle prop2")
		c.u16("circle prop3")
		c.u32("circle color")
		c.u32("circle prop5")
		c.u32("circle prop6")
		c.u16("circle ltype")
		c.u16("circle angle")
		c.u16("circle size")
		c.u16("circle area")
		c.f64("circle lon")
		c.f64("circle lat")
		c.f64("circle unk")

	case entryBitmap:
		c.u16("bmp prop1")
		c.u32("bmp prop2")
		c.u16("bmp prop3")
		c.u32("bmp prop4")
		c.u32("bmp prop5")
		c.u32("bmp prop6")
		c.f64("bmp lon")
		c.f64("bmp lat")
		c.f64("bmp unk")
		bmpLen := c.u32("bmp len")
		if c.err == nil && bmpLen > maxTextLen {
			c.log.Warnf("bin: Read error, max bmp_len exceeded")
			c.fail(ErrFieldTooLarge, "bmp len")
		}
		c.u16("bmp prop")
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
