// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"chordscope/internal/pipeline"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Bin Count         | uint16         | 2            | Profile length (N)      |
| Profile           | []float32      | N * 4        | Pitch class profile     |
| Strength          | float32        | 4            | Chord similarity        |
| Flags             | uint8          | 1            | See flag constants      |
| Label Length      | uint8          | 1            | Bytes in label (L)      |
| Label             | []byte         | L            | UTF-8, empty if none    |
+-----------------------------------------------------------------------------+
*/

// Flag bits carried in each packet.
const (
	FlagConfident uint8 = 1 << iota
	FlagGated
	FlagFailed
)

const headerSize = 4 + 8 + 2

const maxLabelLength = math.MaxUint8

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Profile   []float32
	Strength  float32
	Flags     uint8
	Label     string
}

// Confident reports whether FlagConfident is set.
func (p Packet) Confident() bool {
	return p.Flags&FlagConfident != 0
}

// encodePacket writes a snapshot into buf, which is reset first. f32 is
// scratch space for the profile and is returned, possibly grown.
func encodePacket(buf *bytes.Buffer, f32 []float32, seq uint32, snap *pipeline.Snapshot) ([]float32, error) {
	if len(snap.Profile) > math.MaxUint16 {
		return f32, fmt.Errorf("profile has %d bins, packet holds at most %d", len(snap.Profile), math.MaxUint16)
	}
	if cap(f32) < len(snap.Profile) {
		f32 = make([]float32, len(snap.Profile))
	}
	f32 = f32[:len(snap.Profile)]
	for i, v := range snap.Profile {
		f32[i] = float32(v)
	}

	var flags uint8
	if snap.Decision.Confident() {
		flags |= FlagConfident
	}
	if snap.Gated {
		flags |= FlagGated
	}
	if snap.Failed {
		flags |= FlagFailed
	}

	var label string
	if snap.Decision.Estimate.HasChord() {
		label = snap.Decision.Estimate.Label
	}
	if len(label) > maxLabelLength {
		label = label[:maxLabelLength]
	}

	buf.Reset()
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, snap.Time.UnixNano())
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(f32)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, f32)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, float32(snap.Decision.Estimate.Strength))
	}
	if err == nil {
		err = buf.WriteByte(flags)
	}
	if err == nil {
		err = buf.WriteByte(uint8(len(label)))
	}
	if err == nil {
		_, err = buf.WriteString(label)
	}
	return f32, err
}

// DecodePacket parses a datagram produced by UDPPublisher.
func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	if len(data) < headerSize {
		return p, errors.New("packet too short")
	}
	p.Sequence = binary.BigEndian.Uint32(data[0:4])
	p.Timestamp = int64(binary.BigEndian.Uint64(data[4:12]))
	n := int(binary.BigEndian.Uint16(data[12:14]))

	rest := data[headerSize:]
	if len(rest) < n*4+4+2 {
		return p, fmt.Errorf("packet truncated: %d bins need %d bytes, have %d", n, n*4+6, len(rest))
	}
	p.Profile = make([]float32, n)
	for i := range p.Profile {
		p.Profile[i] = math.Float32frombits(binary.BigEndian.Uint32(rest[i*4:]))
	}
	rest = rest[n*4:]
	p.Strength = math.Float32frombits(binary.BigEndian.Uint32(rest))
	p.Flags = rest[4]
	l := int(rest[5])
	rest = rest[6:]
	if len(rest) < l {
		return p, fmt.Errorf("label truncated: need %d bytes, have %d", l, len(rest))
	}
	p.Label = string(rest[:l])
	return p, nil
}
