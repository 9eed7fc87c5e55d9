package decoder

import (
	"errors"
	"net/netip"
	"testing"

	"firestige.xyz/synscope/internal/core"
)

func TestDecodeIPv4Basic(t *testing.T) {
	// Minimal IPv4 header (20 bytes)
	data := []byte{
		0x45,                   // Version 4, IHL 5
		0x10,                   // DSCP, ECN
		0x00, 0x1C,             // Total Length: 28 bytes
		0x12, 0x34,             // Identification
		0x40, 0x00,             // Flags: DF, Fragment Offset 0
		0x40,                   // TTL: 64
		0x11,                   // Protocol: UDP (17)
		0xBE, 0xEF,             // Checksum
		192, 168, 1, 1,         // Src IP
		192, 168, 1, 2,         // Dst IP
		0x01, 0x02, 0x03, 0x04, // Payload
	}

	ip, payload, err := decodeIPv4(data)
	if err != nil {
		t.Fatalf("decodeIPv4 failed: %v", err)
	}

	if ip.Version() != 4 {
		t.Errorf("Expected version 4, got %d", ip.Version())
	}
	if ip.IHL() != 5 {
		t.Errorf("Expected IHL 5, got %d", ip.IHL())
	}
	if ip.TOS != 0x10 {
		t.Errorf("Expected TOS 0x10, got 0x%02x", ip.TOS)
	}
	if ip.TotalLength != 28 {
		t.Errorf("Expected TotalLength 28, got %d", ip.TotalLength)
	}
	if ip.ID != 0x1234 {
		t.Errorf("Expected ID 0x1234, got 0x%04x", ip.ID)
	}
	if ip.FragOff != 0x4000 {
		t.Errorf("Expected FragOff 0x4000, got 0x%04x", ip.FragOff)
	}
	if ip.TTL != 64 {
		t.Errorf("Expected TTL 64, got %d", ip.TTL)
	}
	if ip.Protocol != 17 {
		t.Errorf("Expected protocol 17, got %d", ip.Protocol)
	}
	if ip.Checksum != 0xBEEF {
		t.Errorf("Expected checksum 0xBEEF, got 0x%04x", ip.Checksum)
	}
	if want := netip.MustParseAddr("192.168.1.1"); ip.SrcIP != want {
		t.Errorf("Expected SrcIP %v, got %v", want, ip.SrcIP)
	}
	if want := netip.MustParseAddr("192.168.1.2"); ip.DstIP != want {
		t.Errorf("Expected DstIP %v, got %v", want, ip.DstIP)
	}
	if len(payload) != 4 {
		t.Errorf("Expected payload length 4, got %d", len(payload))
	}
}

func TestDecodeIPv4OptionsNotSkipped(t *testing.T) {
	// IHL 6 claims 4 option bytes; the transport still starts at offset 20.
	data := make([]byte, 28)
	data[0] = 0x46
	data[9] = 6
	data[20] = 0xAA

	_, rest, err := decodeIPv4(data)
	if err != nil {
		t.Fatalf("decodeIPv4 failed: %v", err)
	}
	if len(rest) != 8 || rest[0] != 0xAA {
		t.Errorf("Expected rest to start at offset 20, got %v", rest)
	}
}

func TestDecodeIPv4TooShort(t *testing.T) {
	for _, n := range []int{0, 1, 19} {
		_, _, err := decodeIPv4(make([]byte, n))
		if !errors.Is(err, core.ErrTruncatedHeader) {
			t.Errorf("len=%d: expected ErrTruncatedHeader, got %v", n, err)
		}
	}
}
