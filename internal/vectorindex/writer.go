package vectorindex

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
)

// Entry is one vector to be written: identity plus its raw fp32 components
// (already L2-normalized by the caller, since search computes dot product
// as a cosine proxy per spec.md §4.E). MessageID is the store's messages.id
// row this embedding was computed from.
type Entry struct {
	ContentHash [contentHashSize]byte
	MessageID   uint64
	AgentEnum   byte
	Timestamp   int64
	Vector      []float32
}

// Write serializes entries into a fresh .cvvi file at path, at the given
// dimension and quantization. Entries must all share the same dimension.
func Write(path string, dimension uint16, q Quantization, entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != int(dimension) {
			return fmt.Errorf("entry dimension %d != declared dimension %d", len(e.Vector), dimension)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	EncodeHeader(Header{
		Version:      FormatVersion,
		Quantization: q,
		Dimension:    dimension,
		EntryCount:   uint64(len(entries)),
	}, header)
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bytesPerComponent := q.BytesPerComponent()
	rowBuf := make([]byte, rowSize)
	for i, e := range entries {
		EncodeRow(Row{
			ContentHash: e.ContentHash,
			MessageID:   e.MessageID,
			AgentEnum:   e.AgentEnum,
			Timestamp:   e.Timestamp,
			VecOffset:   uint64(i) * uint64(dimension) * uint64(bytesPerComponent),
		}, rowBuf)
		if _, err := f.Write(rowBuf); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	footerCRC := crc32.NewIEEE()
	slabBuf := make([]byte, int(dimension)*bytesPerComponent)
	for i, e := range entries {
		encodeVector(e.Vector, q, slabBuf)
		if _, err := f.Write(slabBuf); err != nil {
			return fmt.Errorf("write vector slab entry %d: %w", i, err)
		}
		footerCRC.Write(slabBuf)
	}

	footer := make([]byte, 4)
	binary.LittleEndian.PutUint32(footer, footerCRC.Sum32())
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	return f.Sync()
}

func encodeVector(v []float32, q Quantization, out []byte) {
	switch q {
	case QuantizationFP32:
		for i, c := range v {
			binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(c))
		}
	case QuantizationFP16:
		for i, c := range v {
			binary.LittleEndian.PutUint16(out[i*2:i*2+2], float32ToFloat16(c))
		}
	}
}

// float32ToFloat16 performs round-to-nearest-even IEEE-754 binary16
// conversion. Used only for the opt-in fp16 storage quantization
// (spec.md §4.E); search always computes in fp32 after decoding.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case exp <= 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	default:
		half := uint16(mant >> 13)
		rest := mant & 0x1fff
		if rest > 0x1000 || (rest == 0x1000 && half&1 == 1) {
			half++ // a carry out of the mantissa correctly bumps the exponent
		}
		return sign | (uint16(exp<<10) + half)
	}
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h&0x7c00) >> 10
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	case 0x1f:
		if mant == 0 {
			return math.Float32frombits(sign | 0x7f800000)
		}
		return math.Float32frombits(sign | 0x7f800000 | (mant << 13))
	}

	exp32 := exp - 15 + 127
	return math.Float32frombits(sign | (exp32 << 23) | (mant << 13))
}
