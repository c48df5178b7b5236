package vectorindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	mk := func(hashByte byte, messageID uint64, vec []float32) Entry {
		var h [32]byte
		h[0] = hashByte
		return Entry{ContentHash: h, MessageID: messageID, AgentEnum: 1, Timestamp: 1000, Vector: vec}
	}
	return []Entry{
		mk(1, 10, []float32{1, 0, 0}),
		mk(2, 11, []float32{0, 1, 0}),
		mk(3, 12, []float32{0, 0, 1}),
		mk(4, 13, []float32{0.7071, 0.7071, 0}),
	}
}

func TestWriteReadRoundTripFP32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cvvi")
	entries := sampleEntries()
	require.NoError(t, Write(path, 3, QuantizationFP32, entries))

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	require.Equal(t, uint64(len(entries)), idx.EntryCount())
	require.Equal(t, 3, idx.Dimension())

	for i, e := range entries {
		r := idx.row(uint64(i))
		require.Equal(t, e.MessageID, r.MessageID)
		require.Equal(t, e.AgentEnum, r.AgentEnum)
		require.Equal(t, e.ContentHash, r.ContentHash)

		v := idx.vector(uint64(i))
		require.Len(t, v, 3)
		for c := range v {
			require.InDelta(t, e.Vector[c], v[c], 1e-6)
		}
	}
}

func TestWriteReadRoundTripFP16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cvvi")
	entries := sampleEntries()
	require.NoError(t, Write(path, 3, QuantizationFP16, entries))

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	v := idx.vector(0)
	require.InDelta(t, 1.0, v[0], 1e-3)
	require.InDelta(t, 0.0, v[1], 1e-3)
}

func TestSearchTopKOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cvvi")
	require.NoError(t, Write(path, 3, QuantizationFP32, sampleEntries()))

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search([]float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// exact match (row 0) must be first.
	require.Equal(t, uint64(10), results[0].Row.MessageID)
	require.InDelta(t, 1.0, results[0].Score, 1e-4)

	// results must be sorted strictly by descending score.
	for i := 1; i < len(results); i++ {
		require.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cvvi")
	// two orthogonal-to-query rows score identically (0), ties on row index.
	require.NoError(t, Write(path, 3, QuantizationFP32, []Entry{
		{ContentHash: [32]byte{1}, MessageID: 1, AgentEnum: 1, Timestamp: 1, Vector: []float32{0, 1, 0}},
		{ContentHash: [32]byte{2}, MessageID: 2, AgentEnum: 1, Timestamp: 1, Vector: []float32{0, 0, 1}},
	}))

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search([]float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, uint64(0), results[0].RowIndex)
	require.Equal(t, uint64(1), results[1].RowIndex)
}

func TestSearchWithPredicateFiltersRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cvvi")
	require.NoError(t, Write(path, 3, QuantizationFP32, sampleEntries()))

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search([]float32{1, 0, 0}, 10, func(r Row) bool {
		return r.MessageID != 10
	})
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, uint64(10), r.Row.MessageID)
	}
}

func TestPreConvertMatchesOnDemandDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cvvi")
	require.NoError(t, Write(path, 3, QuantizationFP16, sampleEntries()))

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	before := append([]float32{}, idx.vector(3)...)
	idx.PreConvert()
	after := idx.vector(3)
	require.Len(t, after, 3)
	for i := range before {
		require.InDelta(t, before[i], after[i], 1e-3)
	}
}

func TestOpenRejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.cvvi")
	require.NoError(t, Write(path, 3, QuantizationFP32, sampleEntries()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] = 'X' // corrupt magic
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(path)
	require.Error(t, err)
}

func TestFloat16RoundTrip(t *testing.T) {
	samples := []float32{0, 1, -1, 0.5, -0.5, 3.14159, 65504, -65504, 0.00006103516}
	for _, f := range samples {
		h := float32ToFloat16(f)
		back := float16ToFloat32(h)
		require.InDelta(t, float64(f), float64(back), 0.01*float64(abs32(f))+1e-3)
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
