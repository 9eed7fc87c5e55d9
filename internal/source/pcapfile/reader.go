// Package pcapfile reads classical libpcap capture files frame by frame.
package pcapfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket/layers"

	"firestige.xyz/synscope/internal/core"
	"firestige.xyz/synscope/internal/core/decoder"
	"firestige.xyz/synscope/internal/log"
)

const (
	magicMicroseconds = 0xa1b2c3d4

	globalHeaderLen = 24
	recordHeaderLen = 16

	// DefaultMaxFrameSize bounds the network-layer payload of a single frame.
	DefaultMaxFrameSize = 4096

	// maxTrustedRecordLen is libpcap's MAXIMUM_SNAPLEN. Record lengths above it
	// are treated as garbage that cannot be skipped safely.
	maxTrustedRecordLen = 262144

	readBufferSize = 64 * 1024
)

// FrameFilter decides whether a complete IPv4 frame (link-layer prefix included)
// is kept. It runs before the frame is decoded.
type FrameFilter interface {
	Match(frame []byte) bool
}

// Stats counts what the reader did with each record.
type Stats struct {
	Records         uint64 // record headers read
	Decoded         uint64 // packets yielded
	Excluded        uint64 // non-IPv4 EtherType
	FilterRejected  uint64 // IPv4 frames dropped by the frame filter
	Malformed       uint64 // captured length shorter than the link-layer prefix
	Oversized       uint64 // payload above the maximum frame size
	TruncatedHeader uint64 // payload too short for the headers it claims
}

// Skipped returns the number of frames dropped by a recoverable error.
func (s Stats) Skipped() uint64 {
	return s.Malformed + s.Oversized + s.TruncatedHeader
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxFrameSize sets the largest accepted network-layer payload in bytes.
func WithMaxFrameSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxFrameSize = n
		}
	}
}

// WithFilter installs a frame filter applied to IPv4 frames.
func WithFilter(f FrameFilter) Option {
	return func(r *Reader) {
		r.filter = f
	}
}

// WithLogger sets the logger used for skipped frames and truncation notices.
func WithLogger(l log.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reader is a forward-only iterator over the IPv4 frames of a capture.
// It is not restartable; open the source again to re-read it.
type Reader struct {
	src          *bufio.Reader
	header       core.TraceHeader
	order        binary.ByteOrder
	maxFrameSize int
	filter       FrameFilter
	logger       log.Logger

	rec    [recordHeaderLen]byte
	prefix [decoder.EthernetHeaderLen]byte
	buf    []byte

	index     uint64
	stats     Stats
	done      bool
	truncated bool
	err       error
}

// Open validates the global header of src and returns a reader positioned on
// the first record. ErrInvalidMagic and ErrUnsupportedLinkType are terminal.
func Open(src io.Reader, opts ...Option) (*Reader, error) {
	br, ok := src.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(src, readBufferSize)
	}

	r := &Reader{
		src:          br,
		maxFrameSize: DefaultMaxFrameSize,
		logger:       log.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var raw [globalHeaderLen]byte
	if _, err := io.ReadFull(r.src, raw[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: global header is shorter than %d bytes", core.ErrInvalidMagic, globalHeaderLen)
		}
		return nil, fmt.Errorf("read global header: %w", err)
	}

	switch {
	case binary.LittleEndian.Uint32(raw[0:4]) == magicMicroseconds:
		r.order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw[0:4]) == magicMicroseconds:
		r.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: 0x%08x", core.ErrInvalidMagic, binary.BigEndian.Uint32(raw[0:4]))
	}

	r.header = core.TraceHeader{
		Magic:        r.order.Uint32(raw[0:4]),
		VersionMajor: r.order.Uint16(raw[4:6]),
		VersionMinor: r.order.Uint16(raw[6:8]),
		ThisZone:     int32(r.order.Uint32(raw[8:12])),
		SigFigs:      r.order.Uint32(raw[12:16]),
		SnapLen:      r.order.Uint32(raw[16:20]),
		LinkType:     r.order.Uint32(raw[20:24]),
		ByteOrder:    r.order,
	}

	if r.header.LinkType != uint32(layers.LinkTypeEthernet) {
		return nil, fmt.Errorf("%w: %d, only Ethernet (%d) is supported",
			core.ErrUnsupportedLinkType, r.header.LinkType, layers.LinkTypeEthernet)
	}

	return r, nil
}

// Header returns the validated global header.
func (r *Reader) Header() core.TraceHeader {
	return r.header
}

// Stats returns a snapshot of the record counters.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Truncated reports whether the trace ended part way through a record.
// Both a clean end and a truncated end make Next return io.EOF.
func (r *Reader) Truncated() bool {
	return r.truncated
}

// Next returns the next decoded IPv4 packet.
//
// It returns io.EOF at the end of the trace, a *core.FrameError when a single
// frame had to be skipped (the reader stays usable), and any other error when
// the source failed or can no longer be followed.
func (r *Reader) Next() (core.Packet, error) {
	for {
		if r.done {
			if r.err != nil {
				return core.Packet{}, r.err
			}
			return core.Packet{}, io.EOF
		}

		if _, err := io.ReadFull(r.src, r.rec[:]); err != nil {
			// Zero bytes at a record boundary is the normal end of the trace
			return core.Packet{}, r.finish(err, errors.Is(err, io.EOF))
		}
		rec := core.FrameRecord{
			Timestamp: core.Timestamp{
				Sec:  r.order.Uint32(r.rec[0:4]),
				Usec: r.order.Uint32(r.rec[4:8]),
			},
			CaptureLen: r.order.Uint32(r.rec[8:12]),
			OrigLen:    r.order.Uint32(r.rec[12:16]),
		}
		index := r.index
		r.index++
		r.stats.Records++

		if rec.CaptureLen > r.trustedRecordLen() {
			r.done = true
			r.err = fmt.Errorf("%w: record %d claims %d captured bytes (snaplen %d)",
				core.ErrUnsyncable, index, rec.CaptureLen, r.header.SnapLen)
			return core.Packet{}, r.err
		}

		if rec.CaptureLen < decoder.EthernetHeaderLen {
			if err := r.discard(int64(rec.CaptureLen)); err != nil {
				return core.Packet{}, r.finish(err, false)
			}
			r.stats.Malformed++
			return core.Packet{}, &core.FrameError{
				Index:  index,
				Record: rec,
				Err: fmt.Errorf("%w: captured length %d is shorter than the %d-byte link-layer prefix",
					core.ErrMalformedFrame, rec.CaptureLen, decoder.EthernetHeaderLen),
			}
		}

		// The link-layer prefix is consumed even for frames that are excluded
		if _, err := io.ReadFull(r.src, r.prefix[:]); err != nil {
			return core.Packet{}, r.finish(err, false)
		}
		eth, _ := decoder.DecodeEthernet(r.prefix[:])
		excluded := eth.EtherType != decoder.EtherTypeIPv4
		payloadLen := int(rec.CaptureLen) - decoder.EthernetHeaderLen

		if excluded || payloadLen > r.maxFrameSize {
			if err := r.discard(int64(payloadLen)); err != nil {
				return core.Packet{}, r.finish(err, false)
			}
			if excluded {
				r.stats.Excluded++
				continue
			}
			r.stats.Oversized++
			return core.Packet{}, &core.FrameError{
				Index:  index,
				Record: rec,
				Err: fmt.Errorf("%w: payload of %d bytes exceeds the %d-byte limit",
					core.ErrOversizedFrame, payloadLen, r.maxFrameSize),
			}
		}

		frame := r.frame(int(rec.CaptureLen))
		copy(frame, r.prefix[:])
		if _, err := io.ReadFull(r.src, frame[decoder.EthernetHeaderLen:]); err != nil {
			return core.Packet{}, r.finish(err, false)
		}

		if r.filter != nil && !r.filter.Match(frame) {
			r.stats.FilterRejected++
			continue
		}

		pkt, err := decoder.Decode(frame[decoder.EthernetHeaderLen:])
		if err != nil {
			r.stats.TruncatedHeader++
			return core.Packet{}, &core.FrameError{Index: index, Record: rec, Err: err}
		}
		pkt.Record = rec
		r.stats.Decoded++
		return pkt, nil
	}
}

// trustedRecordLen is the largest record length that can be skipped without
// losing track of record boundaries.
func (r *Reader) trustedRecordLen() uint32 {
	if snap := r.header.SnapLen; snap > 0 && snap < maxTrustedRecordLen {
		// Allow the payload limit on top of small snap lengths, some writers
		// record a nominal snaplen below the frames they store.
		return max(snap, uint32(decoder.EthernetHeaderLen+r.maxFrameSize))
	}
	return maxTrustedRecordLen
}

// frame returns a buffer of exactly n bytes, growing the scratch space as needed.
func (r *Reader) frame(n int) []byte {
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	return r.buf[:n]
}

func (r *Reader) discard(n int64) error {
	if n == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r.src, n)
	return err
}

// finish ends the sequence. End of input is a normal termination; atBoundary
// tells whether it happened between two records.
func (r *Reader) finish(err error, atBoundary bool) error {
	r.done = true
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if !atBoundary {
			r.truncated = true
			r.logger.WithField("record", r.index).Warn("capture ends inside a record, stopping at the last complete frame")
		}
		return io.EOF
	}
	r.err = fmt.Errorf("read record %d: %w", r.index, err)
	return r.err
}
