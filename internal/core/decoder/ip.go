package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/synscope/internal/core"
)

const ipv4HeaderLen = 20

// decodeIPv4 decodes the fixed IPv4 header at offset 0.
// Returns IPv4Header and the bytes following the fixed header.
//
// IHL is kept as read; option bytes are neither skipped nor validated,
// so the transport header is always taken at offset 20.
func decodeIPv4(data []byte) (core.IPv4Header, []byte, error) {
	if len(data) < ipv4HeaderLen {
		return core.IPv4Header{}, nil, core.ErrTruncatedHeader
	}

	ip := core.IPv4Header{
		VersionIHL:  data[0],
		TOS:         data[1],
		TotalLength: binary.BigEndian.Uint16(data[2:4]),
		ID:          binary.BigEndian.Uint16(data[4:6]),
		FragOff:     binary.BigEndian.Uint16(data[6:8]),
		TTL:         data[8],
		Protocol:    data[9],
		Checksum:    binary.BigEndian.Uint16(data[10:12]),
		SrcIP:       netip.AddrFrom4([4]byte(data[12:16])),
		DstIP:       netip.AddrFrom4([4]byte(data[16:20])),
	}

	return ip, data[ipv4HeaderLen:], nil
}
