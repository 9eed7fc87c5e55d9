// Package filter selects frames with classic BPF programs.
package filter

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// BPF runs a classic BPF program over full Ethernet frames in the pure-Go VM.
type BPF struct {
	expr string
	vm   *bpf.VM
}

// NewBPF builds a filter from decoded instructions. expr is kept for logging.
func NewBPF(expr string, instructions []bpf.Instruction) (*BPF, error) {
	vm, err := bpf.NewVM(instructions)
	if err != nil {
		return nil, fmt.Errorf("invalid BPF program for %q: %w", expr, err)
	}
	return &BPF{expr: expr, vm: vm}, nil
}

// FromRaw builds a filter from raw instructions as emitted by libpcap.
func FromRaw(expr string, raw []bpf.RawInstruction) (*BPF, error) {
	instructions, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("BPF program for %q contains instructions the VM cannot run", expr)
	}
	return NewBPF(expr, instructions)
}

// Match reports whether the program accepts the frame. A program error
// (e.g. a load past the end of a short frame) rejects the frame.
func (f *BPF) Match(frame []byte) bool {
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}

// String returns the filter expression.
func (f *BPF) String() string {
	return f.expr
}
