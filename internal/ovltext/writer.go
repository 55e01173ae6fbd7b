package ovltext

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/ra1fh/ggvtogpx/internal/model"
)

// Writer renders geodata as an ASCII overlay file. The output starts
// with an [Overlay] section announcing the symbol count, followed by
// one [Symbol N] section per waypoint, track and route. Text fields
// are encoded to Latin-1 and lines end with CRLF, so the result parses
// back with Reader.
type Writer struct {
	encoder *encoding.Encoder
}

func NewWriter() *Writer {
	return &Writer{
		encoder: encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()),
	}
}

func (w *Writer) Write(geodata *model.Geodata) (string, error) {
	var sb strings.Builder
	symbols := len(geodata.Waypoints) + len(geodata.Tracks) + len(geodata.Routes)
	fmt.Fprintf(&sb, "[Overlay]\r\n")
	fmt.Fprintf(&sb, "Symbols=%d\r\n", symbols)

	index := 1
	for _, waypoint := range geodata.Waypoints {
		fmt.Fprintf(&sb, "[Symbol %d]\r\n", index)
		index++
		fmt.Fprintf(&sb, "Typ=%d\r\n", SymbolText)
		if waypoint.Name != "" {
			fmt.Fprintf(&sb, "Text=%s\r\n", w.encode(waypoint.Name))
		}
		fmt.Fprintf(&sb, "XKoord=%s\r\n", formatCoord(waypoint.Lon))
		fmt.Fprintf(&sb, "YKoord=%s\r\n", formatCoord(waypoint.Lat))
	}
	for _, track := range geodata.Tracks {
		w.writeList(&sb, &index, track, 1)
	}
	for _, route := range geodata.Routes {
		w.writeList(&sb, &index, route, 2)
	}
	return sb.String(), nil
}

// writeList emits one Line symbol. Group 1 marks a track, higher
// groups mark a route.
func (w *Writer) writeList(sb *strings.Builder, index *int, list model.WaypointList, group int) {
	fmt.Fprintf(sb, "[Symbol %d]\r\n", *index)
	*index++
	fmt.Fprintf(sb, "Typ=%d\r\n", SymbolLine)
	fmt.Fprintf(sb, "Group=%d\r\n", group)
	if list.Name != "" {
		fmt.Fprintf(sb, "Text=%s\r\n", w.encode(list.Name))
	}
	fmt.Fprintf(sb, "Punkte=%d\r\n", len(list.Waypoints))
	for j, waypoint := range list.Waypoints {
		fmt.Fprintf(sb, "XKoord%d=%s\r\n", j, formatCoord(waypoint.Lon))
		fmt.Fprintf(sb, "YKoord%d=%s\r\n", j, formatCoord(waypoint.Lat))
	}
}

func (w *Writer) encode(s string) string {
	encoded, err := w.encoder.String(s)
	if err != nil {
		return s
	}
	return encoded
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
