// Package core defines core types with zero external dependencies.
package core

import (
	"encoding/binary"
	"net/netip"
	"time"
)

// Protocol numbers carried in the IPv4 protocol field.
const (
	ProtocolICMP uint8 = 1
	ProtocolTCP  uint8 = 6
)

// TCP control flags.
const (
	TCPFlagFIN uint8 = 0x01
	TCPFlagSYN uint8 = 0x02
	TCPFlagRST uint8 = 0x04
	TCPFlagPSH uint8 = 0x08
	TCPFlagACK uint8 = 0x10
	TCPFlagURG uint8 = 0x20
	TCPFlagECE uint8 = 0x40
	TCPFlagCWR uint8 = 0x80
)

// TraceHeader is the pcap global header.
type TraceHeader struct {
	Magic        uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	LinkType     uint32
	ByteOrder    binary.ByteOrder // resolved from the magic number
}

// Timestamp is a capture timestamp with microsecond resolution.
type Timestamp struct {
	Sec  uint32
	Usec uint32
}

// Seconds returns the timestamp as floating seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t.Sec) + float64(t.Usec)/1_000_000
}

// Time converts the timestamp to UTC wall-clock time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Usec)*int64(time.Microsecond)).UTC()
}

func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}

// FrameRecord is the per-record pcap header.
type FrameRecord struct {
	Timestamp  Timestamp
	CaptureLen uint32 // bytes stored in the trace
	OrigLen    uint32 // bytes on the wire, may exceed CaptureLen
}

// IPv4Header is a fixed 20-byte IPv4 header. Options are not interpreted.
type IPv4Header struct {
	VersionIHL  uint8
	TOS         uint8
	TotalLength uint16
	ID          uint16
	FragOff     uint16 // flags in the upper 3 bits
	TTL         uint8
	Protocol    uint8
	Checksum    uint16
	SrcIP       netip.Addr
	DstIP       netip.Addr
}

// Version returns the upper nibble of VersionIHL.
func (h IPv4Header) Version() uint8 { return h.VersionIHL >> 4 }

// IHL returns the header length in 32-bit words.
func (h IPv4Header) IHL() uint8 { return h.VersionIHL & 0x0F }
