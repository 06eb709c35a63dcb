// Package extract turns one source file into zero or more Evidence items by
// walking its syntax tree against a fixed catalogue of construct shapes.
// Extraction is a pure function of file content: no scoring, no cross-file
// knowledge.
package extract

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"patternguard/internal/evidence"
	"patternguard/internal/lang"
	"patternguard/internal/pgerrors"
)

// maxExcerptLen bounds the excerpt stored on each Evidence item.
const maxExcerptLen = 120

// SourceFile is an immutable snapshot of one file for a single scan.
type SourceFile struct {
	Path        string    // path relative to the scan root
	Content     []byte    // file content at snapshot time
	Fingerprint string    // content-derived identity, see cache.Fingerprint
	ModTime     time.Time // file modification time, recency signal
}

// Extractor walks syntax trees against the construct catalogue.
type Extractor struct {
	parser    *Parser
	catalogue []ConstructShape
	// byType indexes catalogue entries by AST node type so the tree walk
	// does a map lookup per node instead of a catalogue scan.
	byType map[string][]int
	calls  atomic.Int64
}

// NewExtractor creates an extractor over the default catalogue.
func NewExtractor() *Extractor {
	return NewExtractorWithCatalogue(DefaultCatalogue())
}

// NewExtractorWithCatalogue creates an extractor over a custom catalogue.
func NewExtractorWithCatalogue(catalogue []ConstructShape) *Extractor {
	byType := make(map[string][]int)
	for i, shape := range catalogue {
		for _, nt := range shape.NodeTypes {
			byType[nt] = append(byType[nt], i)
		}
	}
	return &Extractor{
		parser:    NewParser(),
		catalogue: catalogue,
		byType:    byType,
	}
}

// Calls returns how many real extractions have run. The cache layer uses
// this to verify that unchanged files are never re-extracted.
func (e *Extractor) Calls() int64 {
	return e.calls.Load()
}

// Extract parses the file and returns all evidence its syntax tree yields.
// Files in unsupported languages yield nil, nil. A structural parse failure
// yields zero evidence and a PARSE_FAILED error; callers treat it as a soft
// failure and keep scanning.
func (e *Extractor) Extract(ctx context.Context, file SourceFile) ([]evidence.Evidence, error) {
	language, ok := lang.FromPath(file.Path)
	if !ok {
		return nil, nil
	}

	e.calls.Add(1)

	tree, err := e.parser.Parse(ctx, file.Content, language)
	if err != nil {
		return nil, pgerrors.New(pgerrors.ParseFailed, "structural parse failed: "+file.Path, err)
	}
	defer tree.Close()

	// A tree with syntax errors still carries well-formed subtrees;
	// extraction proceeds over whatever parsed.
	root := tree.RootNode()

	var found []evidence.Evidence
	e.walk(root, file, language, &found)
	return found, nil
}

func (e *Extractor) walk(node *sitter.Node, file SourceFile, language lang.Language, out *[]evidence.Evidence) {
	if node == nil {
		return
	}

	if indices, ok := e.byType[node.Type()]; ok {
		e.matchNode(node, indices, file, language, out)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		e.walk(node.Child(i), file, language, out)
	}
}

func (e *Extractor) matchNode(node *sitter.Node, indices []int, file SourceFile, language lang.Language, out *[]evidence.Evidence) {
	span := int(node.EndByte()) - int(node.StartByte())
	if span <= 0 || span > maxMatchSpan {
		return
	}
	text := strings.ToLower(node.Content(file.Content))

	for _, idx := range indices {
		shape := e.catalogue[idx]
		if !shape.appliesTo(language) {
			continue
		}
		if !shape.Match(node, file.Content, text) {
			continue
		}
		*out = append(*out, evidence.Evidence{
			Category: shape.Category,
			Label:    shape.Label,
			Excerpt:  excerpt(node.Content(file.Content)),
			File:     file.Path,
			Line:     int(node.StartPoint().Row) + 1,
			Strength: shape.Strength,
			ModTime:  file.ModTime,
		})
	}
}

// excerpt returns the first line of the construct, trimmed and bounded.
func excerpt(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if len(text) > maxExcerptLen {
		text = text[:maxExcerptLen] + "..."
	}
	return text
}
