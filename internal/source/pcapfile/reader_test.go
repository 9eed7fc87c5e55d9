package pcapfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/synscope/internal/core"
)

func TestOpen_ByteOrders(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			data := newTrace(order, 1).record(7, 500000, tcpFrame(1, 0x02)).bytes()

			r, err := Open(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, order, r.Header().ByteOrder)
			assert.Equal(t, uint16(2), r.Header().VersionMajor)
			assert.Equal(t, uint16(4), r.Header().VersionMinor)
			assert.Equal(t, uint32(65535), r.Header().SnapLen)

			pkt, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, uint32(7), pkt.Record.Timestamp.Sec)
			assert.Equal(t, uint32(500000), pkt.Record.Timestamp.Usec)
			assert.InDelta(t, 7.5, pkt.Time(), 1e-9)

			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
			assert.False(t, r.Truncated())
		})
	}
}

func TestOpen_InvalidMagic(t *testing.T) {
	data := newTrace(binary.LittleEndian, 1).bytes()

	tests := []struct {
		name  string
		magic uint32
	}{
		{"garbage", 0xdeadbeef},
		{"nanosecond", 0xa1b23c4d},
		{"pcapng", 0x0a0d0d0a},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := bytes.Clone(data)
			binary.LittleEndian.PutUint32(bad[0:4], tt.magic)

			_, err := Open(bytes.NewReader(bad))
			assert.ErrorIs(t, err, core.ErrInvalidMagic)
		})
	}
}

func TestOpen_ShortHeader(t *testing.T) {
	data := newTrace(binary.LittleEndian, 1).bytes()

	_, err := Open(bytes.NewReader(data[:10]))
	assert.ErrorIs(t, err, core.ErrInvalidMagic)

	_, err = Open(bytes.NewReader(nil))
	assert.ErrorIs(t, err, core.ErrInvalidMagic)
}

func TestOpen_UnsupportedLinkType(t *testing.T) {
	// 101 is LINKTYPE_RAW, 113 Linux cooked capture
	for _, lt := range []uint32{0, 101, 113} {
		data := newTrace(binary.LittleEndian, lt).record(0, 0, tcpFrame(1, 0x02)).bytes()

		_, err := Open(bytes.NewReader(data))
		assert.ErrorIs(t, err, core.ErrUnsupportedLinkType, "link type %d", lt)
	}
}

func TestOpen_ReadFailure(t *testing.T) {
	boom := errors.New("disk on fire")

	_, err := Open(iotest.ErrReader(boom))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, core.ErrInvalidMagic)
}

func TestNext_ExcludesNonIPv4WithoutMisalignment(t *testing.T) {
	b := newTrace(binary.LittleEndian, 1)
	for i := 0; i < 6; i++ {
		if i%2 == 0 {
			b.record(uint32(i), 0, tcpFrame(uint16(100+i), 0x10))
		} else {
			b.record(uint32(i), 0, arpFrame())
		}
	}

	r, err := Open(bytes.NewReader(b.bytes()))
	require.NoError(t, err)

	packets, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, packets, 3)

	for i, pkt := range packets {
		assert.Equal(t, uint16(100+2*i), pkt.IP.ID, "relative order must be preserved")
		assert.Equal(t, uint32(2*i), pkt.Record.Timestamp.Sec)
	}

	stats := r.Stats()
	assert.Equal(t, uint64(6), stats.Records)
	assert.Equal(t, uint64(3), stats.Decoded)
	assert.Equal(t, uint64(3), stats.Excluded)
	assert.Equal(t, uint64(0), stats.Skipped())
}

func TestNext_MalformedFrameIsRecoverable(t *testing.T) {
	data := newTrace(binary.LittleEndian, 1).
		record(0, 0, []byte{0x01, 0x02, 0x03, 0x04, 0x05}).
		record(1, 0, tcpFrame(2, 0x02)).
		bytes()

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = r.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedFrame)
	assert.True(t, core.IsRecoverable(err))

	var fe *core.FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, uint64(0), fe.Index)
	assert.Equal(t, uint32(5), fe.Record.CaptureLen)

	pkt, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), pkt.IP.ID)
	assert.Equal(t, uint64(1), r.Stats().Malformed)
}

func TestNext_ZeroLengthRecord(t *testing.T) {
	data := newTrace(binary.LittleEndian, 1).
		rawRecord(0, 0, 0, 60, nil).
		record(1, 0, tcpFrame(9, 0x02)).
		bytes()

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	packets, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, uint16(9), packets[0].IP.ID)
	assert.Equal(t, uint64(1), r.Stats().Malformed)
}

func TestNext_OversizedFrameIsSkipped(t *testing.T) {
	big := ethFrame(0x0800, ipv4(17, 1, make([]byte, 2000)))
	bigARP := ethFrame(0x0806, make([]byte, 2000))
	data := newTrace(binary.LittleEndian, 1).
		record(0, 0, big).
		record(1, 0, bigARP).
		record(2, 0, tcpFrame(3, 0x12)).
		bytes()

	r, err := Open(bytes.NewReader(data), WithMaxFrameSize(1500))
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, core.ErrOversizedFrame)

	pkt, err := r.Next()
	require.NoError(t, err)
	tcp, ok := pkt.TCP()
	require.True(t, ok)
	assert.True(t, tcp.IsSynAck())

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Oversized)
	assert.Equal(t, uint64(1), stats.Excluded)
}

func TestNext_UntrustworthyLengthIsFatal(t *testing.T) {
	data := newTrace(binary.LittleEndian, 1).
		record(0, 0, tcpFrame(1, 0x02)).
		rawRecord(1, 0, 0x7fffffff, 0x7fffffff, tcpFrame(2, 0x02)).
		bytes()

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, core.ErrUnsyncable)
	assert.False(t, core.IsRecoverable(err))

	// The reader stays failed
	_, again := r.Next()
	assert.ErrorIs(t, again, core.ErrUnsyncable)

	r2, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	packets, err := ReadAll(context.Background(), r2)
	assert.ErrorIs(t, err, core.ErrUnsyncable)
	assert.Nil(t, packets)
}

func TestNext_TruncatedTCPHeader(t *testing.T) {
	short := ethFrame(0x0800, ipv4(6, 1, make([]byte, 10)))
	data := newTrace(binary.LittleEndian, 1).
		record(0, 0, short).
		record(1, 0, tcpFrame(2, 0x02)).
		bytes()

	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, core.ErrTruncatedHeader)
	assert.True(t, core.IsRecoverable(err))

	pkt, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), pkt.IP.ID)
	assert.Equal(t, uint64(1), r.Stats().TruncatedHeader)
}

func TestNext_TruncatedTrace(t *testing.T) {
	full := newTrace(binary.LittleEndian, 1).
		record(0, 0, tcpFrame(1, 0x02)).
		record(1, 0, tcpFrame(2, 0x02)).
		bytes()
	firstEnd := globalHeaderLen + recordHeaderLen + len(tcpFrame(1, 0x02))

	tests := []struct {
		name      string
		cut       int
		truncated bool
	}{
		{"at record boundary", firstEnd, false},
		{"inside record header", firstEnd + 7, true},
		{"inside link-layer prefix", firstEnd + recordHeaderLen + 5, true},
		{"inside payload", firstEnd + recordHeaderLen + 30, true},
		{"one byte short", len(full) - 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Open(bytes.NewReader(full[:tt.cut]))
			require.NoError(t, err)

			packets, err := ReadAll(context.Background(), r)
			require.NoError(t, err)
			require.Len(t, packets, 1)
			assert.Equal(t, uint16(1), packets[0].IP.ID)
			assert.Equal(t, tt.truncated, r.Truncated())
		})
	}
}

func TestNext_IOFailureIsFatal(t *testing.T) {
	boom := errors.New("device error")
	data := newTrace(binary.LittleEndian, 1).record(0, 0, tcpFrame(1, 0x02)).bytes()

	r, err := Open(io.MultiReader(bytes.NewReader(data), iotest.ErrReader(boom)))
	require.NoError(t, err)

	packets, err := ReadAll(context.Background(), r)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, packets)
}

type rejectIDs map[uint16]bool

func (f rejectIDs) Match(frame []byte) bool {
	id := binary.BigEndian.Uint16(frame[14+4 : 14+6])
	return !f[id]
}

func TestNext_FrameFilter(t *testing.T) {
	data := newTrace(binary.LittleEndian, 1).
		record(0, 0, tcpFrame(1, 0x02)).
		record(1, 0, tcpFrame(2, 0x02)).
		record(2, 0, tcpFrame(3, 0x02)).
		bytes()

	r, err := Open(bytes.NewReader(data), WithFilter(rejectIDs{2: true}))
	require.NoError(t, err)

	packets, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Equal(t, uint16(1), packets[0].IP.ID)
	assert.Equal(t, uint16(3), packets[1].IP.ID)
	assert.Equal(t, uint64(1), r.Stats().FilterRejected)
}

func TestReadAll_Cancelled(t *testing.T) {
	data := newTrace(binary.LittleEndian, 1).record(0, 0, tcpFrame(1, 0x02)).bytes()
	r, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ReadAll(ctx, r)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadAll_GopacketWrittenTrace(t *testing.T) {
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	srcMAC := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC := net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	base := time.Unix(1700000000, 0)

	write := func(ts time.Time, ls ...gopacket.SerializableLayer) {
		sb := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.SerializeLayers(sb, opts, ls...))
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(sb.Bytes()), Length: len(sb.Bytes())}
		require.NoError(t, w.WritePacket(ci, sb.Bytes()))
	}

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP{192, 168, 0, 10},
		DstIP:    net.IP{192, 168, 0, 20},
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, Seq: 1000, SYN: true, Window: 14600}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	write(base,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}, ip, tcp)

	write(base.Add(10*time.Millisecond),
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   srcMAC,
			SourceProtAddress: []byte{192, 168, 0, 10},
			DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
			DstProtAddress:    []byte{192, 168, 0, 20},
		})

	icmpIP := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IP{192, 168, 0, 10},
		DstIP:    net.IP{192, 168, 0, 20},
	}
	write(base.Add(20*time.Millisecond),
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		icmpIP,
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 7, Seq: 1},
		gopacket.Payload([]byte("ping")))

	r, err := Open(&buf)
	require.NoError(t, err)

	packets, err := ReadAll(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, packets, 2)

	syn := packets[0]
	assert.Equal(t, uint16(40), syn.IP.TotalLength)
	assert.Equal(t, "192.168.0.10", syn.IP.SrcIP.String())
	h, ok := syn.TCP()
	require.True(t, ok)
	assert.True(t, h.IsSyn())
	assert.Equal(t, uint16(443), h.DstPort)

	ping := packets[1]
	assert.True(t, ping.IsICMP())
	icmp, ok := ping.ICMP()
	require.True(t, ok)
	id, seq := icmp.Echo()
	assert.Equal(t, uint16(7), id)
	assert.Equal(t, uint16(1), seq)
	assert.InDelta(t, 0.02, ping.Time()-syn.Time(), 1e-6)
}
