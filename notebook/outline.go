package notebook

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// SymbolKind is the category of an outlined entity.
type SymbolKind string

const (
	SymbolImport   SymbolKind = "import"
	SymbolFunction SymbolKind = "function"
	SymbolClass    SymbolKind = "class"
)

// Symbol is one outlined entity of a code cell.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Signature string     `json:"signature"`
	Line      int        `json:"line"` // 1-based, within the cell
}

const pythonQuery = `
(import_statement) @import
(import_from_statement) @import
(function_definition name: (identifier) @name) @def
(class_definition name: (identifier) @name) @class
`

// Outliner parses notebook code with tree-sitter. It is safe for
// concurrent use; parses are serialized.
type Outliner struct {
	mu     sync.Mutex
	parser *sitter.Parser
	query  *sitter.Query
}

func NewOutliner() (*Outliner, error) {
	lang := python.GetLanguage()
	q, err := sitter.NewQuery([]byte(pythonQuery), lang)
	if err != nil {
		return nil, fmt.Errorf("invalid outline query: %w", err)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &Outliner{parser: parser, query: q}, nil
}

// Outline lists the imports, functions and classes of source in order.
func (o *Outliner) Outline(ctx context.Context, source string) ([]Symbol, error) {
	content := []byte(source)

	o.mu.Lock()
	defer o.mu.Unlock()

	tree, err := o.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	defer tree.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(o.query, tree.RootNode())

	symbols := make([]Symbol, 0)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}

		var sym Symbol
		var node *sitter.Node
		for _, c := range match.Captures {
			switch o.query.CaptureNameForId(c.Index) {
			case "import":
				node = c.Node
				sym.Kind = SymbolImport
			case "def":
				node = c.Node
				sym.Kind = SymbolFunction
			case "class":
				node = c.Node
				sym.Kind = SymbolClass
			case "name":
				sym.Name = c.Node.Content(content)
			}
		}
		if node == nil {
			continue
		}

		sym.Line = int(node.StartPoint().Row) + 1
		sym.Signature = signature(content, node)
		if sym.Kind == SymbolImport {
			sym.Name = sym.Signature
		}
		if sym.Name != "" {
			symbols = append(symbols, sym)
		}
	}

	sort.SliceStable(symbols, func(i, j int) bool { return symbols[i].Line < symbols[j].Line })
	return symbols, nil
}

// OutlineNotebook outlines every code cell; the result is indexed like
// CodeCells.
func (o *Outliner) OutlineNotebook(ctx context.Context, nb *Notebook) ([][]Symbol, error) {
	cells := nb.CodeCells()
	out := make([][]Symbol, len(cells))
	for i, c := range cells {
		syms, err := o.Outline(ctx, c.Source)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i+1, err)
		}
		out[i] = syms
	}
	return out, nil
}

// signature keeps the header line of a definition, without its body.
func signature(content []byte, node *sitter.Node) string {
	start, end := node.StartByte(), node.EndByte()
	if start >= uint32(len(content)) || end > uint32(len(content)) {
		return ""
	}
	raw := content[start:end]

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	if scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		return strings.TrimSuffix(line, ":")
	}
	return strings.TrimSpace(string(raw))
}
