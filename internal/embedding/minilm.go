package embedding

import "github.com/rawwerks/cass/internal/outcome"

// minilmEmbedder is a configuration placeholder for CASS_SEMANTIC_EMBEDDER=
// minilm. Running an actual sentence-transformers MiniLM model requires ONNX
// runtime bindings and a bundled model file, neither of which this module
// ships; selecting "minilm" fails fast with an actionable error instead of
// silently falling back to the hash embedder, so a misconfigured deployment
// is caught at startup rather than producing degraded search quality.
type minilmEmbedder struct{}

func (minilmEmbedder) Dimension() uint16 { return 384 }

func (minilmEmbedder) Embed(text string) []float32 {
	return nil
}

// New resolves name ("hash" or "minilm") to an Embedder.
func New(name string) (Embedder, error) {
	switch name {
	case "", "hash":
		return NewHashEmbedder(), nil
	case "minilm":
		return nil, outcome.New(outcome.KindUsage,
			"set CASS_SEMANTIC_EMBEDDER=hash, or build cass with a bundled MiniLM runtime",
			"the minilm embedder has no bundled model in this build")
	default:
		return nil, outcome.Usage("choose one of hash, minilm", "unknown embedder %q", name)
	}
}
