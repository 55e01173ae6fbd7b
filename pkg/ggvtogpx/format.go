package ggvtogpx

import (
	"github.com/sirupsen/logrus"

	"github.com/ra1fh/ggvtogpx/internal/gpx"
	"github.com/ra1fh/ggvtogpx/internal/model"
	"github.com/ra1fh/ggvtogpx/internal/ovlbin"
	"github.com/ra1fh/ggvtogpx/internal/ovltext"
	"github.com/ra1fh/ggvtogpx/internal/ovlxml"
)

// Format is a single geodata file format. Input formats implement
// Probe and Read, the GPX output format implements Write.
type Format interface {
	// Name returns the identifier used for format selection.
	Name() string
	// CanRead reports whether Read is implemented.
	CanRead() bool
	// CanWrite reports whether Write is implemented.
	CanWrite() bool
	// Probe inspects the start of buf and reports whether this format
	// can read it.
	Probe(buf []byte) bool
	// Read parses buf into geodata.
	Read(buf []byte) (*model.Geodata, error)
	// Write renders geodata as a document.
	Write(geodata *model.Geodata) (string, error)
	// SetDebug sets the verbosity. 0 is quiet, 4 traces every field.
	SetDebug(level int)
}

// Formats returns the supported input formats.
func Formats() []Format {
	return []Format{
		&binFormat{log: newLogger()},
		&textFormat{log: newLogger()},
		&xmlFormat{log: newLogger()},
	}
}

// NewGPXFormat returns the GPX output format. A non-empty creator
// overrides the GGVTOGPX_CREATOR environment variable and the built-in
// default.
func NewGPXFormat(creator string) Format {
	writer := gpx.NewWriter()
	if creator != "" {
		writer.SetCreator(creator)
	}
	return &gpxFormat{writer: writer}
}

// Lookup returns the format with the given name, or nil.
func Lookup(formats []Format, name string) Format {
	for _, format := range formats {
		if format.Name() == name {
			return format
		}
	}
	return nil
}

// Detect returns the first readable format whose probe accepts buf,
// or nil.
func Detect(formats []Format, buf []byte) Format {
	for _, format := range formats {
		if !format.CanRead() {
			continue
		}
		if format.Probe(buf) {
			return format
		}
	}
	return nil
}

// debugLevel maps the command line debug level to a logrus level.
func debugLevel(level int) logrus.Level {
	switch {
	case level <= 0:
		return logrus.WarnLevel
	case level == 1:
		return logrus.InfoLevel
	case level == 2:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

type binFormat struct {
	log *logrus.Logger
}

func (f *binFormat) Name() string { return "ggv_bin" }
func (f *binFormat) CanRead() bool { return true }
func (f *binFormat) CanWrite() bool { return false }
func (f *binFormat) Probe(buf []byte) bool {
	return ovlbin.Probe(buf)
}
func (f *binFormat) Read(buf []byte) (*model.Geodata, error) {
	return ovlbin.NewReader(buf, f.log).Read()
}
func (f *binFormat) Write(geodata *model.Geodata) (string, error) {
	return "", ErrNotImplemented
}
func (f *binFormat) SetDebug(level int) {
	f.log.SetLevel(debugLevel(level))
}

type textFormat struct {
	log *logrus.Logger
}

func (f *textFormat) Name() string { return "ggv_ovl" }
func (f *textFormat) CanRead() bool { return true }
func (f *textFormat) CanWrite() bool { return true }
func (f *textFormat) Probe(buf []byte) bool {
	return ovltext.Probe(buf)
}
func (f *textFormat) Read(buf []byte) (*model.Geodata, error) {
	return ovltext.NewReader(buf, f.log).Read()
}
func (f *textFormat) Write(geodata *model.Geodata) (string, error) {
	return ovltext.NewWriter().Write(geodata)
}
func (f *textFormat) SetDebug(level int) {
	f.log.SetLevel(debugLevel(level))
}

type xmlFormat struct {
	log *logrus.Logger
}

func (f *xmlFormat) Name() string { return "ggv_xml" }
func (f *xmlFormat) CanRead() bool { return true }
func (f *xmlFormat) CanWrite() bool { return false }
func (f *xmlFormat) Probe(buf []byte) bool {
	return ovlxml.Probe(buf)
}
func (f *xmlFormat) Read(buf []byte) (*model.Geodata, error) {
	return ovlxml.NewReader(buf, f.log).Read()
}
func (f *xmlFormat) Write(geodata *model.Geodata) (string, error) {
	return "", ErrNotImplemented
}
func (f *xmlFormat) SetDebug(level int) {
	f.log.SetLevel(debugLevel(level))
}

type gpxFormat struct {
	writer *gpx.Writer
}

func (f *gpxFormat) Name() string { return "gpx" }
func (f *gpxFormat) CanRead() bool { return false }
func (f *gpxFormat) CanWrite() bool { return true }
func (f *gpxFormat) Probe(buf []byte) bool { return false }
func (f *gpxFormat) Read(buf []byte) (*model.Geodata, error) {
	return nil, ErrNotImplemented
}
func (f *gpxFormat) Write(geodata *model.Geodata) (string, error) {
	return f.writer.Write(geodata)
}
func (f *gpxFormat) SetDebug(level int) {}
