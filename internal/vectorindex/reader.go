package vectorindex

import (
	"container/heap"
	"fmt"
	"hash/crc32"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/rawwerks/cass/internal/logging"
)

// Index is an mmap-backed, read-only view of a .cvvi file.
type Index struct {
	file   *os.File
	region mmap.MMap
	header Header

	fp32Slab []float32 // populated only when PreConvert is used on an fp16 file
}

// Open memory-maps path and validates its header and footer CRC-32.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap vector index: %w", err)
	}

	header, err := DecodeHeader(region)
	if err != nil {
		region.Unmap()
		f.Close()
		return nil, err
	}

	if err := verifyFooter(region, header); err != nil {
		region.Unmap()
		f.Close()
		return nil, err
	}

	logging.Get(logging.CategoryVectorIndex).Info(
		"opened vector index %s (entries=%d dim=%d quant=%d)", path, header.EntryCount, header.Dimension, header.Quantization)

	return &Index{file: f, region: region, header: header}, nil
}

func verifyFooter(region []byte, h Header) error {
	footerOffset := FooterOffset(h.EntryCount, h.Dimension, h.Quantization)
	if int64(len(region)) < footerOffset+4 {
		return fmt.Errorf("vector index truncated: missing footer")
	}
	slab := region[SlabOffset(h.EntryCount):footerOffset]
	gotCRC := crc32.ChecksumIEEE(slab)
	wantCRC := le32(region[footerOffset : footerOffset+4])
	if gotCRC != wantCRC {
		return fmt.Errorf("vector index footer CRC mismatch: got %08x want %08x", gotCRC, wantCRC)
	}
	return nil
}

// Close unmaps and closes the underlying file.
func (idx *Index) Close() error {
	if err := idx.region.Unmap(); err != nil {
		return err
	}
	return idx.file.Close()
}

// Dimension returns the vector dimension this index stores.
func (idx *Index) Dimension() int { return int(idx.header.Dimension) }

// EntryCount returns the number of rows in this index.
func (idx *Index) EntryCount() uint64 { return idx.header.EntryCount }

// PreConvert decodes the entire fp16 slab into an in-process fp32 buffer,
// trading RAM for per-query CPU — the opt-in mode spec.md §4.E describes.
// No-op for fp32 indexes.
func (idx *Index) PreConvert() {
	if idx.header.Quantization != QuantizationFP16 || idx.fp32Slab != nil {
		return
	}
	dim := int(idx.header.Dimension)
	n := int(idx.header.EntryCount)
	out := make([]float32, n*dim)
	slabStart := SlabOffset(idx.header.EntryCount)
	for i := 0; i < n*dim; i++ {
		off := slabStart + int64(i)*2
		out[i] = float16ToFloat32(le16(idx.region[off : off+2]))
	}
	idx.fp32Slab = out
}

func (idx *Index) row(i uint64) Row {
	off := RowTableOffset() + int64(i)*rowSize
	return DecodeRow(idx.region[off : off+rowSize])
}

func (idx *Index) vector(i uint64) []float32 {
	dim := int(idx.header.Dimension)
	if idx.fp32Slab != nil {
		return idx.fp32Slab[int(i)*dim : int(i+1)*dim]
	}
	r := idx.row(i)
	slabStart := SlabOffset(idx.header.EntryCount)
	start := slabStart + int64(r.VecOffset)
	out := make([]float32, dim)
	switch idx.header.Quantization {
	case QuantizationFP32:
		for c := 0; c < dim; c++ {
			off := start + int64(c*4)
			out[c] = math.Float32frombits(le32(idx.region[off : off+4]))
		}
	case QuantizationFP16:
		for c := 0; c < dim; c++ {
			off := start + int64(c*2)
			out[c] = float16ToFloat32(le16(idx.region[off : off+2]))
		}
	}
	return out
}

// Predicate filters candidate rows before scoring (by agent, workspace,
// time range, source — spec.md §4.E). Return false to exclude the row.
type Predicate func(r Row) bool

// ScoredRow is one top-k result. RowIndex is this row's position in the
// row table, which the caller uses to resolve the owning message (typically
// via Row.ContentHash/Row.MessageID, or by keeping a parallel message-id
// slice indexed the same way the orchestrator wrote the entries).
type ScoredRow struct {
	Row      Row
	RowIndex uint64
	Score    float32
}

// heap element ordering: min-heap on Score so the smallest of the current
// top-k sits at index 0 and is evicted first.
type topKHeap []ScoredRow

func (h topKHeap) Len() int { return len(h) }
func (h topKHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	// Reverse row-index comparator here so the heap evicts the *largest*
	// row index first among score ties, leaving the smallest — matching
	// the final (score desc, row index asc) sort, which stands in for
	// (score desc, message_id asc) since rows are written in message
	// insertion order.
	return h[i].RowIndex > h[j].RowIndex
}
func (h topKHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x any)        { *h = append(*h, x.(ScoredRow)) }
func (h *topKHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Search computes cosine similarity (dot product, since vectors are
// expected L2-normalized) between query and every row satisfying pred,
// returning the top k by score, tie-broken deterministically by ascending
// row index. The default path sums in strict sequential order to preserve
// determinism, per spec.md §4.E's ordering-preservation rule; a
// parallel-partitioned scan may reorder floating-point summation and so is
// opt-in only (not implemented here — callers needing it partition
// EntryCount themselves and merge the partial top-k heaps).
func (idx *Index) Search(query []float32, k int, pred Predicate) ([]ScoredRow, error) {
	if len(query) != int(idx.header.Dimension) {
		return nil, fmt.Errorf("query dimension %d != index dimension %d", len(query), idx.header.Dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	h := make(topKHeap, 0, k)
	heap.Init(&h)

	for i := uint64(0); i < idx.header.EntryCount; i++ {
		r := idx.row(i)
		if pred != nil && !pred(r) {
			continue
		}
		score := dot(query, idx.vector(i))
		if h.Len() < k {
			heap.Push(&h, ScoredRow{Row: r, RowIndex: i, Score: score})
			continue
		}
		if score > h[0].Score {
			heap.Pop(&h)
			heap.Push(&h, ScoredRow{Row: r, RowIndex: i, Score: score})
		}
	}

	out := make([]ScoredRow, len(h))
	copy(out, h)
	sortByScoreDescThenOffsetAsc(out)
	return out, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sortByScoreDescThenOffsetAsc(rows []ScoredRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			a, b := rows[j-1], rows[j]
			if a.Score > b.Score || (a.Score == b.Score && a.RowIndex <= b.RowIndex) {
				break
			}
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
