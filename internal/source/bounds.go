// Package source derives traversal configs from real source files.
//
// Bounds parses a file with tree-sitter and finds the function enclosing a
// line. The function's first and last lines become the start and max of a
// walk, so a traversal covers exactly one function body.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/roach88/linewalk/internal/walk"
)

var (
	// ErrUnsupportedLanguage is returned for a language without a grammar.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrLineOutOfRange is returned for a line before 1 or past the end of the file.
	ErrLineOutOfRange = errors.New("line out of range")
)

// Span is an inclusive, 1-based line range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`

	// Function is the enclosing function's name. Empty when the line is
	// outside any function, in which case Start == End == the line.
	Function string `json:"function,omitempty"`
}

// Config returns the walk config covering the span.
func (s Span) Config() walk.Config {
	return walk.Config{
		StartPosition: walk.Position(s.Start),
		MaxPosition:   walk.Position(s.End),
	}
}

// functionNodeTypes are the grammar node kinds treated as functions.
var functionNodeTypes = map[string]bool{
	"function_declaration":     true, // go, javascript
	"method_declaration":       true, // go, java, csharp, php
	"constructor_declaration":  true, // java, csharp
	"local_function_statement": true, // csharp
	"function_definition":      true, // python, c, cpp, php
	"function_item":            true, // rust
	"method_definition":        true, // javascript
	"method":                   true, // ruby
	"singleton_method":         true, // ruby
}

// Languages lists the supported language names.
func Languages() []string {
	return []string{"c", "cpp", "csharp", "go", "java", "javascript", "php", "python", "ruby", "rust"}
}

func grammar(lang string) (*sitter.Language, error) {
	switch strings.ToLower(lang) {
	case "go":
		return golang.GetLanguage(), nil
	case "python":
		return python.GetLanguage(), nil
	case "java":
		return java.GetLanguage(), nil
	case "javascript", "js":
		return javascript.GetLanguage(), nil
	case "c":
		return c.GetLanguage(), nil
	case "cpp", "c++":
		return cpp.GetLanguage(), nil
	case "csharp", "c#", "cs":
		return csharp.GetLanguage(), nil
	case "php":
		return php.GetLanguage(), nil
	case "ruby":
		return ruby.GetLanguage(), nil
	case "rust":
		return rust.GetLanguage(), nil
	}
	return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedLanguage, lang, strings.Join(Languages(), ", "))
}

// LanguageForPath guesses the language from a file extension.
// Returns "" for an unknown extension.
func LanguageForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".cxx", ".hh", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".php":
		return "php"
	case ".rb":
		return "ruby"
	}
	return ""
}

// Bounds returns the span of the function enclosing line (1-based) in
// content. A line outside every function yields the one-line span
// [line, line].
func Bounds(ctx context.Context, lang string, content []byte, line int) (Span, error) {
	language, err := grammar(lang)
	if err != nil {
		return Span{}, err
	}
	if total := lineCount(content); line < 1 || line > total {
		return Span{}, fmt.Errorf("%w: line %d, file has %d lines", ErrLineOutOfRange, line, total)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return Span{}, fmt.Errorf("parse %s source: %w", lang, err)
	}
	defer tree.Close()

	row := uint32(line - 1)
	point := sitter.Point{Row: row, Column: indentWidth(content, row)}
	node := tree.RootNode().NamedDescendantForPointRange(point, point)

	for ; node != nil; node = node.Parent() {
		if functionNodeTypes[node.Type()] {
			span := Span{
				Start: int(node.StartPoint().Row) + 1,
				End:   int(node.EndPoint().Row) + 1,
			}
			span.Function = functionName(node, content)
			return span, nil
		}
	}

	return Span{Start: line, End: line}, nil
}

// functionName reads the name field, or for C and C++ the innermost
// declarator (`int *crawl(int)` nests the identifier two levels down).
func functionName(node *sitter.Node, content []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(content)
	}
	decl := node.ChildByFieldName("declarator")
	if decl == nil {
		return ""
	}
	for next := decl.ChildByFieldName("declarator"); next != nil; next = decl.ChildByFieldName("declarator") {
		decl = next
	}
	return decl.Content(content)
}

// lineCount counts lines the way editors number them. A trailing newline
// does not start a new line.
func lineCount(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// indentWidth returns the byte column of the first non-blank character of
// row, so the lookup lands on the line's code rather than its indentation.
func indentWidth(content []byte, row uint32) uint32 {
	lines := bytes.SplitN(content, []byte{'\n'}, int(row)+2)
	if int(row) >= len(lines) {
		return 0
	}
	text := lines[row]
	trimmed := bytes.TrimLeft(text, " \t")
	if len(trimmed) == 0 {
		return 0
	}
	return uint32(len(text) - len(trimmed))
}
