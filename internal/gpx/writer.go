package gpx

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ra1fh/ggvtogpx/internal/model"
)

const timeLayout = "2006-01-02T15:04:05-07:00"

// Writer renders geodata as a GPX 1.0 document.
type Writer struct {
	creator  string
	testMode bool
}

// NewWriter returns a writer with the creator attribute taken from the
// GGVTOGPX_CREATOR environment variable. Setting GGVTOGPX_TESTMODE
// pins the document timestamp to the epoch so that output stays
// comparable across runs.
func NewWriter() *Writer {
	creator, ok := os.LookupEnv("GGVTOGPX_CREATOR")
	if !ok {
		creator = "ggvtogpx"
	}
	_, testMode := os.LookupEnv("GGVTOGPX_TESTMODE")
	return &Writer{creator: creator, testMode: testMode}
}

func (w *Writer) SetCreator(creator string) {
	w.creator = creator
}

func (w *Writer) Write(geodata *model.Geodata) (string, error) {
	timestamp := time.Now().UTC()
	if w.testMode {
		timestamp = time.Unix(0, 0).UTC()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(&sb, "<gpx version=\"1.0\" creator=\"%s\" xmlns=\"http://www.topografix.com/GPX/1/0\">\n",
		escapeText(w.creator))
	fmt.Fprintf(&sb, "  <time>%s</time>\n", timestamp.Format(timeLayout))
	if min, max, ok := geodata.Bounds(); ok {
		fmt.Fprintf(&sb, "  <bounds minlat=\"%.9f\" minlon=\"%.9f\" maxlat=\"%.9f\" maxlon=\"%.9f\"/>\n",
			min.Lat, min.Lon, max.Lat, max.Lon)
	}
	for _, waypoint := range geodata.Waypoints {
		w.writePoint(&sb, waypoint, "wpt", "  ", true)
	}
	for _, route := range geodata.Routes {
		fmt.Fprintf(&sb, "  <rte>\n")
		if route.Name != "" {
			fmt.Fprintf(&sb, "    <name>%s</name>\n", escapeText(route.Name))
		}
		for _, waypoint := range route.Waypoints {
			w.writePoint(&sb, waypoint, "rtept", "    ", false)
		}
		fmt.Fprintf(&sb, "  </rte>\n")
	}
	for _, track := range geodata.Tracks {
		fmt.Fprintf(&sb, "  <trk>\n")
		if track.Name != "" {
			fmt.Fprintf(&sb, "    <name>%s</name>\n", escapeText(track.Name))
		}
		fmt.Fprintf(&sb, "    <trkseg>\n")
		for _, waypoint := range track.Waypoints {
			w.writePoint(&sb, waypoint, "trkpt", "      ", false)
		}
		fmt.Fprintf(&sb, "    </trkseg>\n")
		fmt.Fprintf(&sb, "  </trk>\n")
	}
	fmt.Fprintf(&sb, "</gpx>\n")
	return sb.String(), nil
}

// writePoint emits one point element. Points without name and
// elevation collapse to a self-closing tag. cmtDesc duplicates the
// name into cmt and desc elements.
func (w *Writer) writePoint(sb *strings.Builder, waypoint model.Waypoint, element, indent string, cmtDesc bool) {
	if waypoint.Name == "" && waypoint.Elevation == nil {
		fmt.Fprintf(sb, "%s<%s lat=\"%.9f\" lon=\"%.9f\"/>\n", indent, element, waypoint.Lat, waypoint.Lon)
		return
	}
	fmt.Fprintf(sb, "%s<%s lat=\"%.9f\" lon=\"%.9f\">\n", indent, element, waypoint.Lat, waypoint.Lon)
	if waypoint.Elevation != nil {
		fmt.Fprintf(sb, "%s  <ele>%.9f</ele>\n", indent, *waypoint.Elevation)
	}
	if waypoint.Name != "" {
		name := escapeText(waypoint.Name)
		fmt.Fprintf(sb, "%s  <name>%s</name>\n", indent, name)
		if cmtDesc {
			fmt.Fprintf(sb, "%s  <cmt>%s</cmt>\n", indent, name)
			fmt.Fprintf(sb, "%s  <desc>%s</desc>\n", indent, name)
		}
	}
	fmt.Fprintf(sb, "%s</%s>\n", indent, element)
}

func escapeText(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}
