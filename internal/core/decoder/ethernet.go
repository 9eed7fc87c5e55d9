package decoder

import (
	"encoding/binary"

	"firestige.xyz/synscope/internal/core"
)

const (
	// EthernetHeaderLen is the size of the link-layer prefix of every frame.
	EthernetHeaderLen = 14

	// EtherType values
	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806
)

// EthernetHeader represents the L2 prefix of a frame. VLAN tags are not unwrapped.
type EthernetHeader struct {
	DstMAC    [6]byte
	SrcMAC    [6]byte
	EtherType uint16
}

// DecodeEthernet decodes the 14-byte link-layer prefix.
func DecodeEthernet(data []byte) (EthernetHeader, error) {
	if len(data) < EthernetHeaderLen {
		return EthernetHeader{}, core.ErrTruncatedHeader
	}

	eth := EthernetHeader{}
	copy(eth.DstMAC[:], data[0:6])
	copy(eth.SrcMAC[:], data[6:12])

	// EtherType is the trailing field of the prefix
	eth.EtherType = binary.BigEndian.Uint16(data[12:14])
	return eth, nil
}
