package utils

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/synscope/internal/filter"
)

// CompileBpf compiles a tcpdump filter expression for Ethernet frames with libpcap.
func CompileBpf(expr string, snapLen int) ([]bpf.RawInstruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter: %w", err)
	}

	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return rawBpf, nil
}

// NewFrameFilter compiles expr into a filter runnable on captured frames.
func NewFrameFilter(expr string, snapLen int) (*filter.BPF, error) {
	raw, err := CompileBpf(expr, snapLen)
	if err != nil {
		return nil, err
	}
	return filter.FromRaw(expr, raw)
}
