package ovlxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/ra1fh/ggvtogpx/internal/model"
)

// overlayName is the archive member holding the overlay document.
const overlayName = "geogrid50.xml"

var zipMagic = []byte("PK\x03\x04")

// Probe reports whether buf starts with a zip local file header.
func Probe(buf []byte) bool {
	return bytes.HasPrefix(buf, zipMagic)
}

type xmlDocument struct {
	XMLName     xml.Name
	ObjectLists []xmlObjectList `xml:"objectList"`
}

type xmlObjectList struct {
	Objects []xmlObject `xml:"object"`
}

type xmlObject struct {
	ClsName       string            `xml:"clsName,attr"`
	UID           string            `xml:"uid,attr"`
	Base          xmlBase           `xml:"base"`
	AttributeList *xmlAttributeList `xml:"attributeList"`
}

type xmlBase struct {
	Name string `xml:"name"`
}

type xmlAttributeList struct {
	Attributes []xmlAttribute `xml:"attribute"`
}

type xmlAttribute struct {
	IIDName   string        `xml:"iidName,attr"`
	Text      string        `xml:"text"`
	CoordList *xmlCoordList `xml:"coordList"`
}

type xmlCoordList struct {
	Coords []xmlCoord `xml:"coord"`
}

type xmlCoord struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
	Z string `xml:"z,attr"`
}

// Reader parses zipped XML overlay files.
type Reader struct {
	buf []byte
	log *logrus.Logger
}

func NewReader(buf []byte, log *logrus.Logger) *Reader {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	return &Reader{buf: buf, log: log}
}

// Read extracts the overlay document from the archive and converts the
// graphic objects to geodata.
func (r *Reader) Read() (*model.Geodata, error) {
	r.log.Tracef("xml: input size: %d", len(r.buf))
	doc, err := r.extractZip()
	if err != nil {
		return nil, fmt.Errorf("reading ggv_xml failed (extract zip, context: \"%w\")", err)
	}
	geodata, err := r.processXML(doc)
	if err != nil {
		return nil, fmt.Errorf("reading ggv_xml failed (function: process, context: \"%w\")", err)
	}
	return geodata, nil
}

// extractZip pulls the overlay document out of the archive and decodes
// it from Latin-1.
func (r *Reader) extractZip() (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(r.buf), int64(len(r.buf)))
	if err != nil {
		return "", err
	}
	for _, file := range archive.File {
		if file.Name != overlayName {
			continue
		}
		r.log.Debugf("xml: found %s", overlayName)
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("reading %s from zip", overlayName)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading %s from zip", overlayName)
		}
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return string(raw), nil
		}
		return string(decoded), nil
	}
	return "", fmt.Errorf("finding %s in zip", overlayName)
}

// processXML parses the overlay document. The root element must be
// geogridOvl; its objectList children hold the graphic objects.
func (r *Reader) processXML(doc string) (*model.Geodata, error) {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	// The document is decoded from Latin-1 before parsing, so the
	// encoding declaration can be ignored.
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	var root xmlDocument
	if err := decoder.Decode(&root); err != nil {
		if err == io.EOF {
			return nil, errors.New("root node")
		}
		return nil, errors.New("parse xml")
	}
	if root.XMLName.Local != "geogridOvl" {
		return nil, errors.New("geogridOvl tag")
	}

	geodata := model.NewGeodata()
	for _, objectList := range root.ObjectLists {
		for _, object := range objectList.Objects {
			r.readObject(&object, geodata)
		}
	}
	return geodata, nil
}

// readObject converts one graphic object. Lines become tracks, circles
// and texts become waypoints taking the first coordinate. Objects of
// any other class are skipped.
func (r *Reader) readObject(object *xmlObject, geodata *model.Geodata) {
	r.log.Debugf("xml: === clsName: %q ===", object.ClsName)
	r.log.Debugf("xml: uid: %q", object.UID)

	switch object.ClsName {
	case "CLSID_GraphicLine", "CLSID_GraphicCircle", "CLSID_GraphicText":
	default:
		return
	}

	name := repairName(object.Base.Name)
	r.log.Debugf("xml: name: %s", name)

	if object.AttributeList == nil {
		return
	}
	list, ok := r.parseAttributeList(object.AttributeList)
	if !ok {
		return
	}
	r.log.Debugf("xml: waypoint_list len: %d", len(list.Waypoints))

	switch object.ClsName {
	case "CLSID_GraphicLine":
		if name == "" || name == "Teilstrecke" || name == "Line" {
			list.Name = fmt.Sprintf("Track %03d", len(geodata.Tracks)+1)
		} else {
			list.Name = name
		}
		geodata.AddTrack(list)
	case "CLSID_GraphicCircle":
		waypoint := list.Waypoints[0]
		if name == "" || name == "Circle" {
			waypoint.Name = fmt.Sprintf("RPT%03d", len(geodata.Waypoints)+1)
		} else {
			waypoint.Name = name
		}
		geodata.AddWaypoint(waypoint)
	case "CLSID_GraphicText":
		// Text objects carry their label in the text attribute, not in
		// the base name.
		waypoint := list.Waypoints[0]
		if list.Name == "" || list.Name == "Text" {
			waypoint.Name = fmt.Sprintf("Text %d", len(geodata.Waypoints)+1)
		} else {
			waypoint.Name = list.Name
		}
		geodata.AddWaypoint(waypoint)
	}
}

// parseAttributeList collects the coordinates and the text label of
// one object. It reports false when no coordinate survives parsing.
func (r *Reader) parseAttributeList(attributeList *xmlAttributeList) (model.WaypointList, bool) {
	var list model.WaypointList
	for _, attribute := range attributeList.Attributes {
		r.log.Debugf("xml: iidName: %s", attribute.IIDName)
		switch attribute.IIDName {
		case "IID_IGraphicTextAttributes":
			if attribute.Text == "" {
				continue
			}
			list.Name = attribute.Text
			r.log.Debugf("xml: text: %s", list.Name)
		case "IID_IGraphic":
			if attribute.CoordList == nil {
				continue
			}
			for _, coord := range attribute.CoordList.Coords {
				waypoint, ok := parseCoord(coord)
				if !ok {
					continue
				}
				elevation := math.NaN()
				if waypoint.Elevation != nil {
					elevation = *waypoint.Elevation
				}
				r.log.Tracef("xml: coord: %09.5f %08.5f %.1f", waypoint.Lat, waypoint.Lon, elevation)
				list.Waypoints = append(list.Waypoints, waypoint)
			}
		}
	}
	if len(list.Waypoints) == 0 {
		return model.WaypointList{}, false
	}
	return list, true
}

// parseCoord reads one coordinate. The altitude is optional and the
// marker value -32768 means no altitude is known.
func parseCoord(coord xmlCoord) (model.Waypoint, bool) {
	lon, err := strconv.ParseFloat(coord.X, 64)
	if err != nil {
		return model.Waypoint{}, false
	}
	lat, err := strconv.ParseFloat(coord.Y, 64)
	if err != nil {
		return model.Waypoint{}, false
	}
	waypoint := model.Waypoint{Lat: lat, Lon: lon}
	if coord.Z != "" && coord.Z != "-32768" {
		if elevation, err := strconv.ParseFloat(coord.Z, 64); err == nil {
			waypoint.Elevation = &elevation
		}
	}
	return waypoint, true
}

// repairName fixes names that are UTF-8 encoded even though the
// document is declared Latin-1. Such names survive the Latin-1 decode
// as mojibake; converting the code points back to bytes recovers the
// original UTF-8 sequence.
func repairName(name string) string {
	raw := make([]byte, 0, len(name))
	for _, r := range name {
		if r > 0xff {
			return name
		}
		raw = append(raw, byte(r))
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	return name
}
