// Package lang maps source files to tree-sitter grammars.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language represents a supported programming language.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangUnknown    Language = "unknown"
)

var extToLanguage = map[string]Language{
	".go":  LangGo,
	".js":  LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".jsx": LangTSX, // JSX parses under the TSX grammar
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".tsx": LangTSX,
	".py":  LangPython,
}

// FromExtension returns the language for a file extension (with leading dot).
func FromExtension(ext string) (Language, bool) {
	l, ok := extToLanguage[strings.ToLower(ext)]
	return l, ok
}

// FromPath returns the language for a file path.
func FromPath(path string) (Language, bool) {
	return FromExtension(filepath.Ext(path))
}

// Extensions returns the default extension allow-list for file discovery.
func Extensions() []string {
	exts := make([]string, 0, len(extToLanguage))
	for ext := range extToLanguage {
		exts = append(exts, ext)
	}
	return exts
}

// Grammar returns the tree-sitter grammar for a language.
func Grammar(l Language) (*sitter.Language, error) {
	switch l {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
}
