// Package report renders the summary of an analysis run.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/synscope/internal/core"
	"firestige.xyz/synscope/internal/source/pcapfile"
)

// TraceInfo describes the capture's global header.
type TraceInfo struct {
	ByteOrder    string  `yaml:"byte_order" mapstructure:"byte_order"`
	Version      string  `yaml:"version" mapstructure:"version"`
	SnapLen      uint32  `yaml:"snaplen" mapstructure:"snaplen"`
	LinkType     uint32  `yaml:"link_type" mapstructure:"-"`
	Truncated    bool    `yaml:"truncated" mapstructure:"truncated"`
	FirstPacket  string  `yaml:"first_packet,omitempty" mapstructure:"-"`
	LastPacket   string  `yaml:"last_packet,omitempty" mapstructure:"-"`
	DurationSecs float64 `yaml:"duration_seconds" mapstructure:"duration_seconds"`
}

// FrameCounts mirrors the reader statistics.
type FrameCounts struct {
	Records         uint64 `yaml:"records" mapstructure:"records"`
	Decoded         uint64 `yaml:"decoded" mapstructure:"decoded"`
	Excluded        uint64 `yaml:"excluded" mapstructure:"excluded"`
	FilterRejected  uint64 `yaml:"filter_rejected" mapstructure:"filter_rejected"`
	Malformed       uint64 `yaml:"malformed" mapstructure:"malformed"`
	Oversized       uint64 `yaml:"oversized" mapstructure:"oversized"`
	TruncatedHeader uint64 `yaml:"truncated_header" mapstructure:"truncated_header"`
}

// WindowInfo describes the aggregation.
type WindowInfo struct {
	Size      int    `yaml:"size" mapstructure:"window_size"`
	FlagMatch string `yaml:"flag_match" mapstructure:"flag_match"`
	Vectors   int    `yaml:"vectors" mapstructure:"vectors"`
}

// Summary is the outcome of one run.
type Summary struct {
	Input        string      `yaml:"input" mapstructure:"input"`
	Filter       string      `yaml:"filter,omitempty" mapstructure:"-"`
	Trace        TraceInfo   `yaml:"trace" mapstructure:",squash"`
	Frames       FrameCounts `yaml:"frames" mapstructure:",squash"`
	Window       WindowInfo  `yaml:"window" mapstructure:",squash"`
	Outputs      []string    `yaml:"outputs" mapstructure:"-"`
	PlotFailures int         `yaml:"plot_failures,omitempty" mapstructure:"-"`
}

// NewSummary fills the trace and frame sections from a drained reader.
func NewSummary(input string, r *pcapfile.Reader, packets []core.Packet) *Summary {
	hdr := r.Header()
	st := r.Stats()

	s := &Summary{
		Input: input,
		Trace: TraceInfo{
			ByteOrder: hdr.ByteOrder.String(),
			Version:   fmt.Sprintf("%d.%d", hdr.VersionMajor, hdr.VersionMinor),
			SnapLen:   hdr.SnapLen,
			LinkType:  hdr.LinkType,
			Truncated: r.Truncated(),
		},
		Frames: FrameCounts{
			Records:         st.Records,
			Decoded:         st.Decoded,
			Excluded:        st.Excluded,
			FilterRejected:  st.FilterRejected,
			Malformed:       st.Malformed,
			Oversized:       st.Oversized,
			TruncatedHeader: st.TruncatedHeader,
		},
	}

	if n := len(packets); n > 0 {
		first, last := packets[0].Record.Timestamp, packets[n-1].Record.Timestamp
		s.Trace.FirstPacket = first.String()
		s.Trace.LastPacket = last.String()
		s.Trace.DurationSecs = last.Seconds() - first.Seconds()
	}
	return s
}

// Fields flattens the summary into structured log fields.
func (s *Summary) Fields() (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if err := mapstructure.Decode(s, &fields); err != nil {
		return nil, fmt.Errorf("flatten summary: %w", err)
	}
	return fields, nil
}

// Encode writes the summary as YAML.
func (s *Summary) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the summary to path, creating parent directories.
func (s *Summary) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Load reads a summary written by WriteFile.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return &s, nil
}
