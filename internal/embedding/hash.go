// Package embedding provides cass's pluggable text-to-vector embedders
// (spec.md §6: CASS_SEMANTIC_EMBEDDER ∈ {hash, minilm}). The hash embedder
// is a self-contained feature-hashing bag-of-words model requiring no
// external weights; it's the only embedder this module ships a working
// implementation of — see DESIGN.md for why minilm is a configuration stub
// rather than a full transformer inference path.
package embedding

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashDimension is the fixed output dimension of the hash embedder.
const HashDimension = 128

// Embedder turns text into a fixed-dimension, L2-normalized vector.
type Embedder interface {
	Embed(text string) []float32
	Dimension() uint16
}

type hashEmbedder struct{}

// NewHashEmbedder returns the deterministic feature-hashing embedder
// (config.EmbedderHash): no training, no model file, reproducible across
// machines and runs, at the cost of lower recall than a learned embedding.
func NewHashEmbedder() Embedder { return hashEmbedder{} }

func (hashEmbedder) Dimension() uint16 { return HashDimension }

// Embed hashes each token into one of HashDimension buckets (the hashing
// trick), using a second hash bit to pick a +1/-1 sign per token so unrelated
// tokens partially cancel instead of only ever adding — the same
// fnv-hash-mod-N idiom internal/query/cache.go uses for its Bloom mask,
// applied here to build a dense vector instead of a membership sketch.
func (hashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, HashDimension)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := sum % HashDimension
		sign := float32(1)
		if (sum>>16)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}
	normalize(vec)
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sumSq float64
	for _, c := range vec {
		sumSq += float64(c) * float64(c)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
