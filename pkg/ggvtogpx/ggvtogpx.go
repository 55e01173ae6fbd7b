// Package ggvtogpx converts Geogrid-Viewer overlay files to GPX.
//
// Three overlay flavors are supported: the binary OVL format written
// by Geogrid-Viewer 2.0 up to 4.0, the ASCII OVL format of version
// 1.5, and the zipped XML format of version 5.0. The input flavor is
// detected automatically.
//
// Example usage:
//
//	buf, err := os.ReadFile("tour.ovl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gpx, err := ggvtogpx.ToGPX(buf)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("tour.gpx", []byte(gpx), 0644)
package ggvtogpx

import (
	"github.com/ra1fh/ggvtogpx/internal/model"
)

// Decode parses an overlay file in any supported format and returns
// the contained waypoints, routes and tracks.
//
// Example:
//
//	buf, _ := os.ReadFile("tour.ovl")
//	geodata, err := ggvtogpx.Decode(buf)
func Decode(buf []byte) (*model.Geodata, error) {
	format := Detect(Formats(), buf)
	if format == nil {
		return nil, ErrUnknownFormat
	}
	return format.Read(buf)
}

// ToGPX parses an overlay file in any supported format and returns the
// GPX document.
//
// The creator attribute of the document can be set through the
// GGVTOGPX_CREATOR environment variable.
//
// Example:
//
//	buf, _ := os.ReadFile("tour.ovl")
//	gpx, err := ggvtogpx.ToGPX(buf)
func ToGPX(buf []byte) (string, error) {
	geodata, err := Decode(buf)
	if err != nil {
		return "", err
	}
	return NewGPXFormat("").Write(geodata)
}

// Common errors
var (
	ErrNotImplemented = &Error{Code: "not_implemented", Message: "feature not yet implemented"}
	ErrUnknownFormat  = &Error{Code: "unknown_format", Message: "input format not given or detected."}
)

// Error represents a ggvtogpx error
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}
