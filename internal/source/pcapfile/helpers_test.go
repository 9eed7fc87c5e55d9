package pcapfile

import (
	"bytes"
	"encoding/binary"
)

// traceBuilder assembles pcap bytes by hand so tests can produce records a
// well-behaved writer never would.
type traceBuilder struct {
	order binary.ByteOrder
	buf   bytes.Buffer
}

func newTrace(order binary.ByteOrder, linkType uint32) *traceBuilder {
	b := &traceBuilder{order: order}
	hdr := make([]byte, globalHeaderLen)
	order.PutUint32(hdr[0:4], magicMicroseconds)
	order.PutUint16(hdr[4:6], 2)
	order.PutUint16(hdr[6:8], 4)
	order.PutUint32(hdr[16:20], 65535)
	order.PutUint32(hdr[20:24], linkType)
	b.buf.Write(hdr)
	return b
}

// record appends a record whose captured and original length match the frame.
func (b *traceBuilder) record(sec, usec uint32, frame []byte) *traceBuilder {
	return b.rawRecord(sec, usec, uint32(len(frame)), uint32(len(frame)), frame)
}

// rawRecord appends a record header with arbitrary lengths followed by data.
func (b *traceBuilder) rawRecord(sec, usec, capLen, origLen uint32, data []byte) *traceBuilder {
	hdr := make([]byte, recordHeaderLen)
	b.order.PutUint32(hdr[0:4], sec)
	b.order.PutUint32(hdr[4:8], usec)
	b.order.PutUint32(hdr[8:12], capLen)
	b.order.PutUint32(hdr[12:16], origLen)
	b.buf.Write(hdr)
	b.buf.Write(data)
	return b
}

func (b *traceBuilder) bytes() []byte {
	return b.buf.Bytes()
}

func ethFrame(etherType uint16, payload []byte) []byte {
	frame := make([]byte, 14, 14+len(payload))
	copy(frame[0:6], []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	copy(frame[6:12], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	binary.BigEndian.PutUint16(frame[12:14], etherType)
	return append(frame, payload...)
}

func ipv4(protocol uint8, id uint16, body []byte) []byte {
	pkt := make([]byte, 20, 20+len(body))
	pkt[0] = 0x45
	binary.BigEndian.PutUint16(pkt[2:4], uint16(20+len(body)))
	binary.BigEndian.PutUint16(pkt[4:6], id)
	pkt[8] = 64
	pkt[9] = protocol
	copy(pkt[12:16], []byte{10, 0, 0, 1})
	copy(pkt[16:20], []byte{10, 0, 0, 2})
	return append(pkt, body...)
}

func tcpSegment(flags uint8) []byte {
	seg := make([]byte, 20)
	binary.BigEndian.PutUint16(seg[0:2], 40000)
	binary.BigEndian.PutUint16(seg[2:4], 80)
	seg[12] = 0x50
	seg[13] = flags
	return seg
}

func tcpFrame(id uint16, flags uint8) []byte {
	return ethFrame(0x0800, ipv4(6, id, tcpSegment(flags)))
}

func arpFrame() []byte {
	return ethFrame(0x0806, make([]byte, 28))
}
