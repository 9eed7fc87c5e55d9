package decoder

import (
	"encoding/binary"

	"firestige.xyz/synscope/internal/core"
)

const (
	tcpHeaderLen      = 20
	icmpHeaderLen     = 4
	icmpRestHeaderLen = 4
)

// decodeTransport dispatches on the IPv4 protocol field.
func decodeTransport(data []byte, protocol uint8) (core.Transport, error) {
	switch protocol {
	case core.ProtocolTCP:
		tcp, err := decodeTCP(data)
		if err != nil {
			return nil, err
		}
		return tcp, nil
	case core.ProtocolICMP:
		icmp, err := decodeICMP(data)
		if err != nil {
			return nil, err
		}
		return icmp, nil
	default:
		return core.Opaque{Proto: protocol}, nil
	}
}

// decodeTCP decodes a fixed 20-byte TCP header. Options are ignored.
func decodeTCP(data []byte) (*core.TCPHeader, error) {
	if len(data) < tcpHeaderLen {
		return nil, core.ErrTruncatedHeader
	}

	return &core.TCPHeader{
		SrcPort:    binary.BigEndian.Uint16(data[0:2]),
		DstPort:    binary.BigEndian.Uint16(data[2:4]),
		Seq:        binary.BigEndian.Uint32(data[4:8]),
		Ack:        binary.BigEndian.Uint32(data[8:12]),
		DataOffset: data[12] >> 4,
		Flags:      data[13],
		Window:     binary.BigEndian.Uint16(data[14:16]),
		Checksum:   binary.BigEndian.Uint16(data[16:18]),
		Urgent:     binary.BigEndian.Uint16(data[18:20]),
	}, nil
}

// decodeICMP decodes the 4-byte ICMP header, plus the rest of header when present.
func decodeICMP(data []byte) (*core.ICMPHeader, error) {
	if len(data) < icmpHeaderLen {
		return nil, core.ErrTruncatedHeader
	}

	icmp := &core.ICMPHeader{
		Type:     data[0],
		Code:     data[1],
		Checksum: binary.BigEndian.Uint16(data[2:4]),
	}
	if len(data) >= icmpHeaderLen+icmpRestHeaderLen {
		copy(icmp.Rest[:], data[icmpHeaderLen:icmpHeaderLen+icmpRestHeaderLen])
		icmp.HasRest = true
	}
	return icmp, nil
}
