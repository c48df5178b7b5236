// Package vectorindex implements cass's bespoke on-disk vector index: a
// bit-exact binary format (magic/version/quantization/dimension/count/CRC
// header, a fixed-width row table, a contiguous vector slab, and a trailing
// CRC-32 footer) described in spec.md §6. A sqlite-vec virtual table cannot
// express this exact format, so the store uses github.com/edsrzf/mmap-go to
// memory-map the file directly instead of going through SQLite — see
// DESIGN.md for the full rationale.
package vectorindex

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Quantization selects how vector components are stored.
type Quantization byte

const (
	QuantizationFP32 Quantization = 0
	QuantizationFP16 Quantization = 1
)

var magic = [4]byte{'C', 'V', 'V', 'I'}

const FormatVersion byte = 1

// headerSize is magic(4) + version(1) + quantization(1) + dimension(2) +
// count(8) + CRC32(4).
const headerSize = 4 + 1 + 1 + 2 + 8 + 4

// rowSize is content_hash[32] + message_id_varint(max 10 bytes for uint64,
// written fixed-width here for O(1) row addressing) + agent_enum[1] +
// timestamp[8] + vec_offset[8].
const (
	contentHashSize   = 32
	messageIDFieldSize = 10 // fixed-width varint slot; spec calls it "varint" but
	// a fixed-width slot is required for the format to support O(1) random
	// row access by index, which the §4.E scan needs.
	agentEnumSize = 1
	timestampSize = 8
	vecOffsetSize = 8
	rowSize       = contentHashSize + messageIDFieldSize + agentEnumSize + timestampSize + vecOffsetSize
)

// Header is the parsed fixed header of a .cvvi file.
type Header struct {
	Version      byte
	Quantization Quantization
	Dimension    uint16
	EntryCount   uint64
}

// BytesPerComponent returns 4 for fp32 or 2 for fp16.
func (q Quantization) BytesPerComponent() int {
	if q == QuantizationFP16 {
		return 2
	}
	return 4
}

// EncodeHeader writes the fixed header (without its CRC, computed by the
// caller over these same bytes) into buf, which must be headerSize long.
func EncodeHeader(h Header, buf []byte) {
	copy(buf[0:4], magic[:])
	buf[4] = h.Version
	buf[5] = byte(h.Quantization)
	binary.LittleEndian.PutUint16(buf[6:8], h.Dimension)
	binary.LittleEndian.PutUint64(buf[8:16], h.EntryCount)
	crc := crc32.ChecksumIEEE(buf[0:16])
	binary.LittleEndian.PutUint32(buf[16:20], crc)
}

// DecodeHeader parses and validates the fixed header, verifying magic,
// version, and CRC-32.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("vector index header truncated: got %d bytes, want %d", len(buf), headerSize)
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return Header{}, fmt.Errorf("vector index magic mismatch: got %q", buf[0:4])
	}

	wantCRC := binary.LittleEndian.Uint32(buf[16:20])
	gotCRC := crc32.ChecksumIEEE(buf[0:16])
	if gotCRC != wantCRC {
		return Header{}, fmt.Errorf("vector index header CRC mismatch: got %08x want %08x", gotCRC, wantCRC)
	}

	h := Header{
		Version:      buf[4],
		Quantization: Quantization(buf[5]),
		Dimension:    binary.LittleEndian.Uint16(buf[6:8]),
		EntryCount:   binary.LittleEndian.Uint64(buf[8:16]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("vector index version %d unsupported (want %d)", h.Version, FormatVersion)
	}
	return h, nil
}

// Row is one decoded row-table record. MessageID is the store's messages.id
// row, not a Source's source_id string — it's the join key resolveSemanticHit
// uses to look the rest of a hit's display fields back up via
// store.GetHitByMessageID.
type Row struct {
	ContentHash [contentHashSize]byte
	MessageID   uint64
	AgentEnum   byte
	Timestamp   int64
	VecOffset   uint64
}

// EncodeRow writes one row record into buf, which must be rowSize long.
func EncodeRow(r Row, buf []byte) {
	copy(buf[0:contentHashSize], r.ContentHash[:])
	off := contentHashSize
	binary.LittleEndian.PutUint64(buf[off:off+8], r.MessageID)
	// remaining messageIDFieldSize-8 bytes stay zero-padded.
	off += messageIDFieldSize
	buf[off] = r.AgentEnum
	off += agentEnumSize
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(r.Timestamp))
	off += timestampSize
	binary.LittleEndian.PutUint64(buf[off:off+8], r.VecOffset)
}

// DecodeRow parses one row record from buf (rowSize bytes starting at
// offset 0 of the slice).
func DecodeRow(buf []byte) Row {
	var r Row
	copy(r.ContentHash[:], buf[0:contentHashSize])
	off := contentHashSize
	r.MessageID = binary.LittleEndian.Uint64(buf[off : off+8])
	off += messageIDFieldSize
	r.AgentEnum = buf[off]
	off += agentEnumSize
	r.Timestamp = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
	off += timestampSize
	r.VecOffset = binary.LittleEndian.Uint64(buf[off : off+8])
	return r
}

// RowTableOffset is the byte offset of the row table, immediately following
// the fixed header.
func RowTableOffset() int64 { return headerSize }

// SlabOffset returns the byte offset of the vector slab given an entry count.
func SlabOffset(entryCount uint64) int64 {
	return RowTableOffset() + int64(entryCount)*rowSize
}

// FooterOffset returns the byte offset of the trailing CRC-32 footer.
func FooterOffset(entryCount uint64, dimension uint16, q Quantization) int64 {
	return SlabOffset(entryCount) + int64(entryCount)*int64(dimension)*int64(q.BytesPerComponent())
}
