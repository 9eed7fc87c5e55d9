// Package csv writes feature series as headerless two-column CSV tables.
package csv

import (
	gocsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"firestige.xyz/synscope/internal/log"
	"firestige.xyz/synscope/internal/window"
)

// DefaultPrecision is the number of fractional digits written per value.
const DefaultPrecision = 6

// FileNames maps each series to its table name inside the output directory.
var FileNames = map[window.SeriesKind]string{
	window.TimeSyn:  "synsynack_time.csv",
	window.SizeSyn:  "synsynack_size.csv",
	window.ICMPSyn:  "synsynack_icmp.csv",
	window.SizeTime: "size_time.csv",
}

// SeriesWriter streams the points of one series to w.
type SeriesWriter struct {
	kind      window.SeriesKind
	w         *gocsv.Writer
	precision int
	rows      int
	record    [2]string
}

// NewSeriesWriter returns a writer for kind. A negative precision selects
// DefaultPrecision.
func NewSeriesWriter(w io.Writer, kind window.SeriesKind, precision int) *SeriesWriter {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &SeriesWriter{
		kind:      kind,
		w:         gocsv.NewWriter(w),
		precision: precision,
	}
}

// Kind returns the series this writer was created for.
func (s *SeriesWriter) Kind() window.SeriesKind {
	return s.kind
}

// Rows returns the number of points written so far.
func (s *SeriesWriter) Rows() int {
	return s.rows
}

// Write appends one row.
func (s *SeriesWriter) Write(p window.Point) error {
	s.record[0] = strconv.FormatFloat(p.X, 'f', s.precision, 64)
	s.record[1] = strconv.FormatFloat(p.Y, 'f', s.precision, 64)
	if err := s.w.Write(s.record[:]); err != nil {
		return fmt.Errorf("write %s row %d: %w", s.kind, s.rows, err)
	}
	s.rows++
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (s *SeriesWriter) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", s.kind, err)
	}
	return nil
}

// Sink writes a complete set of series into a directory.
type Sink struct {
	dir       string
	precision int
	logger    log.Logger
}

// New creates a sink rooted at dir. The directory is created on first write.
func New(dir string, precision int) *Sink {
	if dir == "" {
		dir = "."
	}
	return &Sink{
		dir:       dir,
		precision: precision,
		logger:    log.GetLogger(),
	}
}

// Path returns the final location of the table for kind.
func (s *Sink) Path(kind window.SeriesKind) string {
	return filepath.Join(s.dir, FileNames[kind])
}

// WriteAll writes every series in window.Kinds order and returns the written
// paths. Tables are staged under temporary names and only renamed into place
// once all of them were written, so a failure leaves no partial output.
func (s *Sink) WriteAll(series map[window.SeriesKind][]window.Point) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	staged := make([]string, 0, len(window.Kinds))
	paths := make([]string, 0, len(window.Kinds))
	cleanup := func() {
		for _, name := range staged {
			s.remove(name)
		}
		for _, name := range paths {
			s.remove(name)
		}
	}

	for _, kind := range window.Kinds {
		tmp, err := s.stage(kind, series[kind])
		if tmp != "" {
			staged = append(staged, tmp)
		}
		if err != nil {
			cleanup()
			return nil, err
		}
	}

	for i, kind := range window.Kinds {
		dst := s.Path(kind)
		if err := os.Rename(staged[i], dst); err != nil {
			staged = staged[i:]
			cleanup()
			return nil, fmt.Errorf("rename %s: %w", dst, err)
		}
		paths = append(paths, dst)
		s.logger.WithFields(map[string]interface{}{
			"series": kind.String(),
			"rows":   len(series[kind]),
			"path":   dst,
		}).Debug("series written")
	}
	return paths, nil
}

func (s *Sink) remove(name string) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).WithField("path", name).Debug("remove failed")
	}
}

func (s *Sink) stage(kind window.SeriesKind, points []window.Point) (string, error) {
	f, err := os.CreateTemp(s.dir, "."+FileNames[kind]+".*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", kind, err)
	}
	name := f.Name()

	sw := NewSeriesWriter(f, kind, s.precision)
	for _, p := range points {
		if err := sw.Write(p); err != nil {
			f.Close()
			return name, err
		}
	}
	if err := sw.Flush(); err != nil {
		f.Close()
		return name, err
	}
	if err := f.Close(); err != nil {
		return name, fmt.Errorf("close %s: %w", kind, err)
	}
	return name, nil
}
