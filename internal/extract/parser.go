package extract

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"patternguard/internal/lang"
)

// Parser wraps tree-sitter for multi-language parsing. A sitter.Parser is
// not safe for concurrent use, so instances are pooled; Parse may be called
// from multiple goroutines.
type Parser struct {
	pool sync.Pool
}

// NewParser creates a new pooled tree-sitter parser.
func NewParser() *Parser {
	return &Parser{
		pool: sync.Pool{
			New: func() interface{} {
				return sitter.NewParser()
			},
		},
	}
}

// Parse parses source code and returns the syntax tree. The tree must be
// kept reachable while its nodes are in use.
func (p *Parser) Parse(ctx context.Context, source []byte, l lang.Language) (*sitter.Tree, error) {
	grammar, err := lang.Grammar(l)
	if err != nil {
		return nil, err
	}

	parser := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(parser)

	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return tree, nil
}
