// Package ftsindex is cass's thin wrapper over bleve, the third-party
// inverted-index engine used for full-text search (spec.md §4.D): schema
// construction, versioned-by-hash rebuild detection, debounced reader
// reload, and the document shape every indexed message maps to.
package ftsindex

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	edgeNgramMin = 1
	edgeNgramMax = 20

	textAnalyzerName      = "cass_text"
	edgeNgramAnalyzerName = "cass_edge_ngram"
	edgeNgramFilterName   = "cass_edge_ngram_filter"
)

// Doc is the bleve document shape for one indexed message (spec.md §4.D's
// field table). Fields ending _prefix exist purely to be analyzed with the
// edge-n-gram analyzer; they are never read back, only queried against.
type Doc struct {
	Agent      string `json:"agent"`
	Workspace  string `json:"workspace"`
	SourceID   string `json:"source_id"`
	OriginKind string `json:"origin_kind"`
	OriginHost string `json:"origin_host"`
	SourcePath string `json:"source_path"`

	MsgIdx    int   `json:"msg_idx"`
	CreatedAt int64 `json:"created_at"`

	Title         string `json:"title"`
	Content       string `json:"content"`
	TitlePrefix   string `json:"title_prefix"`
	ContentPrefix string `json:"content_prefix"`

	Preview     string `json:"preview"`
	ContentHash string `json:"content_hash"`
}

// BuildMapping constructs the index mapping described in spec.md §4.D: a
// hyphen-aware text analyzer for title/content and an edge-n-gram analyzer
// for the *_prefix fields, keyword fields for exact filters, stored numeric
// fields for msg_idx/created_at, and a stored preview text field.
func BuildMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = textAnalyzerName

	if err := m.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":          "custom",
		"tokenizer":     "unicode",
		"token_filters": []string{"toLower", hyphenSplitFilterName},
	}); err != nil {
		return nil, err
	}

	if err := m.AddCustomTokenFilter(edgeNgramFilterName, map[string]interface{}{
		"type": edgengram.Name,
		"back": false,
		"min":  float64(edgeNgramMin),
		"max":  float64(edgeNgramMax),
	}); err != nil {
		return nil, err
	}
	if err := m.AddCustomAnalyzer(edgeNgramAnalyzerName, map[string]interface{}{
		"type":          "custom",
		"tokenizer":     "unicode",
		"token_filters": []string{"toLower", edgeNgramFilterName},
	}); err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentMapping()

	keyword := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = "keyword"
		f.Store = true
		f.IncludeInAll = false
		return f
	}
	text := func(stored bool) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = textAnalyzerName
		f.Store = stored
		return f
	}
	prefix := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = edgeNgramAnalyzerName
		f.Store = false
		f.IncludeInAll = false
		return f
	}
	number := func() *mapping.FieldMapping {
		f := bleve.NewNumericFieldMapping()
		f.Store = true
		return f
	}
	stored := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = "keyword"
		f.Store = true
		f.Index = false
		return f
	}

	doc.AddFieldMappingsAt("agent", keyword())
	doc.AddFieldMappingsAt("workspace", keyword())
	doc.AddFieldMappingsAt("source_id", keyword())
	doc.AddFieldMappingsAt("origin_kind", keyword())
	doc.AddFieldMappingsAt("origin_host", keyword())
	doc.AddFieldMappingsAt("source_path", keyword())
	doc.AddFieldMappingsAt("msg_idx", number())
	doc.AddFieldMappingsAt("created_at", number())
	doc.AddFieldMappingsAt("title", text(false))
	doc.AddFieldMappingsAt("content", text(false))
	doc.AddFieldMappingsAt("title_prefix", prefix())
	doc.AddFieldMappingsAt("content_prefix", prefix())
	doc.AddFieldMappingsAt("preview", stored())
	doc.AddFieldMappingsAt("content_hash", stored())

	m.AddDocumentMapping("message", doc)
	m.DefaultMapping = doc

	return m, nil
}

// SchemaHash returns a stable hash of the field table this version of cass
// builds, so a version mismatch (spec.md §4.D) can be detected without
// deserializing the whole bleve mapping.
func SchemaHash() (string, error) {
	fields := []string{
		"agent:keyword", "workspace:keyword", "source_id:keyword",
		"origin_kind:keyword", "origin_host:keyword", "source_path:keyword",
		"msg_idx:number", "created_at:number",
		"title:text", "content:text",
		"title_prefix:edge_ngram", "content_prefix:edge_ngram",
		"preview:stored", "content_hash:stored",
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
