package core

import (
	"encoding/binary"
	"net/netip"
)

// Transport is the protocol-tagged header following the IPv4 header.
// Implementations are *TCPHeader, *ICMPHeader and Opaque.
type Transport interface {
	Protocol() uint8
	isTransport()
}

// TCPHeader represents a fixed 20-byte TCP header.
type TCPHeader struct {
	SrcPort    uint16
	DstPort    uint16
	Seq        uint32
	Ack        uint32
	DataOffset uint8 // upper nibble of byte 12, in 32-bit words
	Flags      uint8
	Window     uint16
	Checksum   uint16
	Urgent     uint16
}

func (*TCPHeader) Protocol() uint8 { return ProtocolTCP }
func (*TCPHeader) isTransport()    {}

// IsSyn holds iff the flags byte is exactly SYN.
func (h *TCPHeader) IsSyn() bool { return h.Flags == TCPFlagSYN }

// IsSynAck holds iff the flags byte is exactly SYN|ACK.
func (h *TCPHeader) IsSynAck() bool { return h.Flags == TCPFlagSYN|TCPFlagACK }

// HasFlags reports whether every bit of mask is set.
func (h *TCPHeader) HasFlags(mask uint8) bool { return h.Flags&mask == mask }

// ICMPHeader represents the 4-byte ICMP header and, when captured,
// the 4-byte type-dependent rest of header.
type ICMPHeader struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	Rest     [4]byte
	HasRest  bool
}

func (*ICMPHeader) Protocol() uint8 { return ProtocolICMP }
func (*ICMPHeader) isTransport()    {}

// Echo returns the identifier and sequence number of echo messages.
func (h *ICMPHeader) Echo() (id, seq uint16) {
	return binary.BigEndian.Uint16(h.Rest[0:2]), binary.BigEndian.Uint16(h.Rest[2:4])
}

// Gateway returns the gateway address of redirect messages.
func (h *ICMPHeader) Gateway() netip.Addr {
	return netip.AddrFrom4(h.Rest)
}

// NextHopMTU returns the MTU of "fragmentation needed" messages.
func (h *ICMPHeader) NextHopMTU() uint16 {
	return binary.BigEndian.Uint16(h.Rest[2:4])
}

// Opaque marks a transport protocol this system does not interpret.
type Opaque struct {
	Proto uint8
}

func (o Opaque) Protocol() uint8 { return o.Proto }
func (Opaque) isTransport()      {}

// Packet is a decoded IPv4 frame together with its capture record.
type Packet struct {
	Record    FrameRecord
	IP        IPv4Header
	Transport Transport
}

// TCP returns the TCP header if the packet carries one.
func (p *Packet) TCP() (*TCPHeader, bool) {
	tcp, ok := p.Transport.(*TCPHeader)
	return tcp, ok
}

// ICMP returns the ICMP header if the packet carries one.
func (p *Packet) ICMP() (*ICMPHeader, bool) {
	icmp, ok := p.Transport.(*ICMPHeader)
	return icmp, ok
}

// IsICMP reports whether the IPv4 protocol field says ICMP.
func (p *Packet) IsICMP() bool {
	return p.IP.Protocol == ProtocolICMP
}

// Time returns the capture timestamp in seconds.
func (p *Packet) Time() float64 {
	return p.Record.Timestamp.Seconds()
}

// FeatureVector is the result of one window position.
type FeatureVector struct {
	MeanInterArrival float64
	MeanSize         float64
	MeanICMPFraction float64
	SynCount         int
	SynAckCount      int
}

// SynMinusSynAck returns SynCount - SynAckCount.
func (v FeatureVector) SynMinusSynAck() float64 {
	return float64(v.SynCount - v.SynAckCount)
}
