// Package tracegen writes synthetic Ethernet captures with a controllable mix
// of handshake, ICMP and ARP traffic.
package tracegen

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Kind is the type of a generated frame.
type Kind int

const (
	KindSyn Kind = iota
	KindSynAck
	KindAck
	KindICMPEcho
	KindARP
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindSyn:
		return "syn"
	case KindSynAck:
		return "syn-ack"
	case KindAck:
		return "ack"
	case KindICMPEcho:
		return "icmp-echo"
	case KindARP:
		return "arp"
	default:
		return "unknown"
	}
}

// Mix holds relative weights per frame kind.
type Mix struct {
	Syn    int
	SynAck int
	Ack    int
	ICMP   int
	ARP    int
}

func (m Mix) weights() [numKinds]int {
	return [numKinds]int{m.Syn, m.SynAck, m.Ack, m.ICMP, m.ARP}
}

// Options controls Generate.
type Options struct {
	Count      int
	Start      time.Time
	Interval   time.Duration
	Mix        Mix
	Seed       int64
	SnapLen    uint32
	MaxPayload int // upper bound of random TCP/ICMP payload bytes
}

// DefaultOptions returns a SYN-heavy mix resembling a flood against a server
// that answers only part of the requests.
func DefaultOptions() Options {
	return Options{
		Count:      1000,
		Start:      time.Unix(1700000000, 0),
		Interval:   time.Millisecond,
		Mix:        Mix{Syn: 6, SynAck: 2, Ack: 1, ICMP: 1, ARP: 1},
		Seed:       1,
		SnapLen:    65535,
		MaxPayload: 64,
	}
}

// Stats counts the frames written per kind.
type Stats struct {
	Frames int
	ByKind [numKinds]int
}

// Count returns the number of frames of kind k.
func (s Stats) Count(k Kind) int {
	if k < 0 || k >= numKinds {
		return 0
	}
	return s.ByKind[k]
}

var (
	clientMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	serverMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
	serverIP  = net.IP{192, 0, 2, 10}
)

// Generate writes a little-endian microsecond pcap to w. The output only
// depends on opts, the same seed always yields the same bytes.
func Generate(w io.Writer, opts Options) (Stats, error) {
	var stats Stats
	if opts.Count < 0 {
		return stats, fmt.Errorf("negative frame count %d", opts.Count)
	}
	weights := opts.Mix.weights()
	total := 0
	for _, wt := range weights {
		if wt < 0 {
			return stats, errors.New("mix weights must not be negative")
		}
		total += wt
	}
	if total == 0 {
		return stats, errors.New("mix has no positive weight")
	}
	if opts.SnapLen == 0 {
		opts.SnapLen = 65535
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(opts.SnapLen, layers.LinkTypeEthernet); err != nil {
		return stats, fmt.Errorf("write pcap header: %w", err)
	}

	g := &generator{
		rng:  rand.New(rand.NewSource(opts.Seed)),
		opts: opts,
		buf:  gopacket.NewSerializeBuffer(),
	}

	for i := 0; i < opts.Count; i++ {
		kind := g.pick(weights, total)
		data, err := g.frame(kind)
		if err != nil {
			return stats, fmt.Errorf("serialize frame %d (%s): %w", i, kind, err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     opts.Start.Add(time.Duration(i) * opts.Interval),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return stats, fmt.Errorf("write frame %d: %w", i, err)
		}
		stats.Frames++
		stats.ByKind[kind]++
	}
	return stats, nil
}

type generator struct {
	rng  *rand.Rand
	opts Options
	buf  gopacket.SerializeBuffer
}

func (g *generator) pick(weights [numKinds]int, total int) Kind {
	n := g.rng.Intn(total)
	for k, wt := range weights {
		if n < wt {
			return Kind(k)
		}
		n -= wt
	}
	return KindSyn
}

func (g *generator) clientIP() net.IP {
	return net.IP{198, 51, 100, byte(g.rng.Intn(254) + 1)}
}

func (g *generator) payload() gopacket.Payload {
	if g.opts.MaxPayload <= 0 {
		return nil
	}
	p := make([]byte, g.rng.Intn(g.opts.MaxPayload+1))
	g.rng.Read(p)
	return p
}

func (g *generator) frame(kind Kind) ([]byte, error) {
	if err := g.buf.Clear(); err != nil {
		return nil, err
	}
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}

	var err error
	switch kind {
	case KindARP:
		eth := &layers.Ethernet{
			SrcMAC:       clientMAC,
			DstMAC:       layers.EthernetBroadcast,
			EthernetType: layers.EthernetTypeARP,
		}
		arp := &layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   clientMAC,
			SourceProtAddress: g.clientIP().To4(),
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    serverIP.To4(),
		}
		err = gopacket.SerializeLayers(g.buf, opts, eth, arp)

	case KindICMPEcho:
		eth, ip := g.ipv4(layers.IPProtocolICMPv4)
		icmp := &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       uint16(g.rng.Intn(1 << 16)),
			Seq:      uint16(g.rng.Intn(1 << 16)),
		}
		err = gopacket.SerializeLayers(g.buf, opts, eth, ip, icmp, g.payload())

	default:
		eth, ip := g.ipv4(layers.IPProtocolTCP)
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(g.rng.Intn(65535-1024) + 1024),
			DstPort: 80,
			Seq:     g.rng.Uint32(),
			Window:  14600,
		}
		switch kind {
		case KindSyn:
			tcp.SYN = true
		case KindSynAck:
			// Server to client
			eth.SrcMAC, eth.DstMAC = eth.DstMAC, eth.SrcMAC
			ip.SrcIP, ip.DstIP = ip.DstIP, ip.SrcIP
			tcp.SrcPort, tcp.DstPort = tcp.DstPort, tcp.SrcPort
			tcp.SYN, tcp.ACK = true, true
			tcp.Ack = g.rng.Uint32()
		case KindAck:
			tcp.ACK = true
			tcp.Ack = g.rng.Uint32()
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		if kind == KindAck {
			err = gopacket.SerializeLayers(g.buf, opts, eth, ip, tcp, g.payload())
		} else {
			err = gopacket.SerializeLayers(g.buf, opts, eth, ip, tcp)
		}
	}
	if err != nil {
		return nil, err
	}
	return g.buf.Bytes(), nil
}

func (g *generator) ipv4(proto layers.IPProtocol) (*layers.Ethernet, *layers.IPv4) {
	eth := &layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       serverMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       uint16(g.rng.Intn(1 << 16)),
		Protocol: proto,
		SrcIP:    g.clientIP(),
		DstIP:    serverIP,
	}
	return eth, ip
}
