package model

// Waypoint is a single geographic point with an optional name and elevation.
type Waypoint struct {
	Lat       float64  // Latitude in decimal degrees, north positive
	Lon       float64  // Longitude in decimal degrees, east positive
	Elevation *float64 // Elevation in meters, nil when the source carries none
	Name      string   // Display name, may be empty
}

// WaypointList is a named sequence of waypoints forming a route or a track.
type WaypointList struct {
	Name      string // List name, may be empty
	Waypoints []Waypoint
}

// Resource is an auxiliary binary object extracted from an overlay,
// for example an embedded bitmap.
type Resource struct {
	Name string // Resource kind, e.g. "bmp"
	Data []byte // Raw file image
}

// Geodata is the unified internal representation. Format readers fill it,
// format writers render it.
type Geodata struct {
	Waypoints []Waypoint     // Standalone points
	Routes    []WaypointList // Planned point sequences
	Tracks    []WaypointList // Drawn or recorded line geometry
	Resources []Resource     // Embedded binary objects
}

// NewGeodata creates a new empty Geodata container.
func NewGeodata() *Geodata {
	return &Geodata{
		Waypoints: make([]Waypoint, 0),
		Routes:    make([]WaypointList, 0),
		Tracks:    make([]WaypointList, 0),
	}
}

// AddWaypoint appends a standalone waypoint.
func (g *Geodata) AddWaypoint(w Waypoint) {
	g.Waypoints = append(g.Waypoints, w)
}

// AddRoute appends a named route.
func (g *Geodata) AddRoute(l WaypointList) {
	g.Routes = append(g.Routes, l)
}

// AddTrack appends a named track.
func (g *Geodata) AddTrack(l WaypointList) {
	g.Tracks = append(g.Tracks, l)
}

// AddResource appends an extracted binary resource.
func (g *Geodata) AddResource(name string, data []byte) {
	g.Resources = append(g.Resources, Resource{Name: name, Data: data})
}

// Bounds returns the smallest and largest coordinates over all waypoints,
// routes and tracks. ok is false when there are no points at all. The
// reported maximum latitude never lies south of the equator.
func (g *Geodata) Bounds() (min, max Waypoint, ok bool) {
	min = Waypoint{Lat: 90, Lon: 180}
	max = Waypoint{Lat: 0, Lon: -180}

	update := func(w Waypoint) {
		if w.Lat < min.Lat {
			min.Lat = w.Lat
		}
		if w.Lon < min.Lon {
			min.Lon = w.Lon
		}
		if w.Lat > max.Lat {
			max.Lat = w.Lat
		}
		if w.Lon > max.Lon {
			max.Lon = w.Lon
		}
		ok = true
	}

	for _, w := range g.Waypoints {
		update(w)
	}
	for _, l := range g.Routes {
		for _, w := range l.Waypoints {
			update(w)
		}
	}
	for _, l := range g.Tracks {
		for _, w := range l.Waypoints {
			update(w)
		}
	}
	return min, max, ok
}
