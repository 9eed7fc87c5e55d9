package decoder

import (
	"errors"
	"testing"

	"firestige.xyz/synscope/internal/core"
)

func TestDecodeEthernetBasic(t *testing.T) {
	// Simple Ethernet frame: Dst MAC, Src MAC, EtherType
	data := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x08, 0x00, // EtherType: IPv4
		0x45, 0x00, // Payload (start of IP header)
	}

	eth, err := DecodeEthernet(data)
	if err != nil {
		t.Fatalf("DecodeEthernet failed: %v", err)
	}

	expectedDstMAC := [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	if eth.DstMAC != expectedDstMAC {
		t.Errorf("Expected DstMAC %v, got %v", expectedDstMAC, eth.DstMAC)
	}

	expectedSrcMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if eth.SrcMAC != expectedSrcMAC {
		t.Errorf("Expected SrcMAC %v, got %v", expectedSrcMAC, eth.SrcMAC)
	}

	if eth.EtherType != EtherTypeIPv4 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", eth.EtherType)
	}
}

func TestDecodeEthernetARP(t *testing.T) {
	data := make([]byte, EthernetHeaderLen)
	data[12], data[13] = 0x08, 0x06

	eth, err := DecodeEthernet(data)
	if err != nil {
		t.Fatalf("DecodeEthernet failed: %v", err)
	}
	if eth.EtherType != EtherTypeARP {
		t.Errorf("Expected EtherType 0x0806, got 0x%04x", eth.EtherType)
	}
}

func TestDecodeEthernetTooShort(t *testing.T) {
	data := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x08}

	_, err := DecodeEthernet(data)
	if !errors.Is(err, core.ErrTruncatedHeader) {
		t.Errorf("Expected ErrTruncatedHeader, got %v", err)
	}
}
