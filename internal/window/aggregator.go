// Package window derives per-window feature vectors from a decoded packet sequence.
package window

import (
	"fmt"

	"firestige.xyz/synscope/internal/core"
)

// FlagMatch selects how SYN and SYN-ACK segments are recognised.
type FlagMatch string

const (
	// FlagMatchExact requires the flags byte to be exactly SYN or SYN|ACK.
	FlagMatchExact FlagMatch = "exact"
	// FlagMatchMask only requires the SYN (and ACK) bits, ignoring others.
	FlagMatchMask FlagMatch = "mask"
)

// ParseFlagMatch validates a flag matching mode name.
func ParseFlagMatch(s string) (FlagMatch, error) {
	switch FlagMatch(s) {
	case FlagMatchExact, "":
		return FlagMatchExact, nil
	case FlagMatchMask:
		return FlagMatchMask, nil
	default:
		return "", fmt.Errorf("%w: unknown flag match mode %q (must be exact or mask)", core.ErrConfigInvalid, s)
	}
}

type options struct {
	match FlagMatch
}

// Option configures Aggregate.
type Option func(*options)

// WithMask is shorthand for WithFlagMatch(FlagMatchMask).
func WithMask() Option {
	return WithFlagMatch(FlagMatchMask)
}

// WithFlagMatch selects the SYN/SYN-ACK classification mode.
func WithFlagMatch(m FlagMatch) Option {
	return func(o *options) {
		o.match = m
	}
}

func (o *options) classify(p *core.Packet) (syn, synAck bool) {
	tcp, ok := p.TCP()
	if !ok {
		return false, false
	}
	if o.match == FlagMatchMask {
		synAck = tcp.HasFlags(core.TCPFlagSYN | core.TCPFlagACK)
		syn = tcp.HasFlags(core.TCPFlagSYN) && !synAck
		return syn, synAck
	}
	return tcp.IsSyn(), tcp.IsSynAck()
}

// Aggregate slides a window of size packets with stride 1 over packets and
// returns one vector per start index, max(0, len(packets)-size+1) in total.
//
// Inter-arrival deltas are taken against the global predecessor of each
// packet, so the first member of window i > 0 is compared with packets[i-1].
// Only packets[0] has no predecessor and contributes no delta.
func Aggregate(packets []core.Packet, size int, opts ...Option) ([]core.FeatureVector, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidWindow, size)
	}

	o := &options{match: FlagMatchExact}
	for _, opt := range opts {
		opt(o)
	}

	n := len(packets) - size + 1
	if n <= 0 {
		return nil, nil
	}

	vectors := make([]core.FeatureVector, 0, n)
	for i := 0; i < n; i++ {
		var (
			v     core.FeatureVector
			bytes float64
			delta float64
			icmp  float64
		)
		for k := i; k < i+size; k++ {
			p := &packets[k]

			syn, synAck := o.classify(p)
			if syn {
				v.SynCount++
			}
			if synAck {
				v.SynAckCount++
			}

			bytes += float64(p.IP.TotalLength)
			if p.IsICMP() {
				icmp++
			}
			if k > 0 {
				delta += p.Time() - packets[k-1].Time()
			}
		}

		w := float64(size)
		v.MeanSize = bytes / w
		v.MeanICMPFraction = icmp / w
		v.MeanInterArrival = delta / w
		vectors = append(vectors, v)
	}
	return vectors, nil
}
