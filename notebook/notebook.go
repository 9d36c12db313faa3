// Package notebook reads the Jupyter-style notebook that accompanies an
// analysis result: the code the backend ran and what it printed.
package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Cell is one notebook cell.
type Cell struct {
	Type    string
	Source  string
	Outputs []Output
}

// Output is the printable part of one cell output.
type Output struct {
	Kind string // stream, execute_result, display_data, error
	Text string
}

type Notebook struct {
	Cells []Cell
}

type rawNotebook struct {
	Cells []struct {
		CellType string          `json:"cell_type"`
		Source   multiline       `json:"source"`
		Outputs  []rawCellOutput `json:"outputs"`
	} `json:"cells"`
}

type rawCellOutput struct {
	OutputType string               `json:"output_type"`
	Text       multiline            `json:"text"`
	Data       map[string]multiline `json:"data"`
	EName      string               `json:"ename"`
	EValue     string               `json:"evalue"`
}

// multiline accepts both a string and the nbformat list-of-lines form.
type multiline string

func (m *multiline) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = ""
		return nil
	}
	if b[0] == '[' {
		var lines []string
		if err := json.Unmarshal(b, &lines); err != nil {
			return err
		}
		*m = multiline(strings.Join(lines, ""))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*m = multiline(s)
	return nil
}

// Decode parses raw. An empty or null payload yields an empty notebook.
func Decode(raw json.RawMessage) (*Notebook, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &Notebook{}, nil
	}

	var rn rawNotebook
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, fmt.Errorf("decode notebook: %w", err)
	}

	nb := &Notebook{Cells: make([]Cell, 0, len(rn.Cells))}
	for _, rc := range rn.Cells {
		c := Cell{Type: rc.CellType, Source: string(rc.Source)}
		if c.Type == "" {
			c.Type = "code"
		}
		for _, ro := range rc.Outputs {
			if text := outputText(ro); text != "" {
				c.Outputs = append(c.Outputs, Output{Kind: ro.OutputType, Text: text})
			}
		}
		nb.Cells = append(nb.Cells, c)
	}
	return nb, nil
}

func outputText(o rawCellOutput) string {
	if o.OutputType == "error" || o.EName != "" {
		return strings.TrimSpace(o.EName + ": " + o.EValue)
	}
	if s, ok := o.Data["text/plain"]; ok && s != "" {
		return string(s)
	}
	return string(o.Text)
}

// CodeCells returns the code cells in order.
func (n *Notebook) CodeCells() []Cell {
	var out []Cell
	for _, c := range n.Cells {
		if c.Type == "code" && strings.TrimSpace(c.Source) != "" {
			out = append(out, c)
		}
	}
	return out
}

// Code concatenates every code cell into one script.
func (n *Notebook) Code() string {
	var parts []string
	for _, c := range n.CodeCells() {
		parts = append(parts, strings.TrimRight(c.Source, "\n"))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}
