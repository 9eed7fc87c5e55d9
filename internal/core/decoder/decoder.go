// Package decoder implements L3-L4 protocol decoding of captured frames.
package decoder

import (
	"fmt"

	"firestige.xyz/synscope/internal/core"
)

// Decode decodes the network-layer bytes of one frame (the frame minus its
// link-layer prefix) into a packet view. The returned packet has no record set.
func Decode(payload []byte) (core.Packet, error) {
	ip, rest, err := decodeIPv4(payload)
	if err != nil {
		return core.Packet{}, fmt.Errorf("ipv4: %w", err)
	}

	transport, err := decodeTransport(rest, ip.Protocol)
	if err != nil {
		return core.Packet{}, fmt.Errorf("protocol %d: %w", ip.Protocol, err)
	}

	return core.Packet{IP: ip, Transport: transport}, nil
}
