package notebook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "cells": [
    {
      "cell_type": "code",
      "source": ["import pandas as pd\n", "df = pd.read_sql(query, conn)\n"],
      "outputs": [
        {"output_type": "stream", "name": "stdout", "text": ["loaded 240 rows\n"]}
      ]
    },
    {
      "cell_type": "markdown",
      "source": "## Summary"
    },
    {
      "source": "def top_buildings(df, n=5):\n    return df.nlargest(n, 'kwh')\n\ntop_buildings(df)",
      "outputs": [
        {"output_type": "execute_result", "data": {"text/plain": "   gedung   kwh\n0  Labtek V  1520"}},
        {"output_type": "error", "ename": "KeyError", "evalue": "'kwh'"}
      ]
    }
  ]
}`

func TestDecode(t *testing.T) {
	nb, err := Decode(json.RawMessage(sample))
	require.NoError(t, err)
	require.Len(t, nb.Cells, 3)

	first := nb.Cells[0]
	assert.Equal(t, "code", first.Type)
	assert.Equal(t, "import pandas as pd\ndf = pd.read_sql(query, conn)\n", first.Source)
	require.Len(t, first.Outputs, 1)
	assert.Equal(t, "loaded 240 rows\n", first.Outputs[0].Text)

	assert.Equal(t, "markdown", nb.Cells[1].Type)

	third := nb.Cells[2]
	assert.Equal(t, "code", third.Type)
	require.Len(t, third.Outputs, 2)
	assert.Contains(t, third.Outputs[0].Text, "Labtek V")
	assert.Equal(t, "KeyError: 'kwh'", third.Outputs[1].Text)

	assert.Len(t, nb.CodeCells(), 2)
}

func TestDecodeEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		nb, err := Decode(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Empty(t, nb.Cells)
		assert.Empty(t, nb.Code())
	}

	_, err := Decode(json.RawMessage(`{"cells": 5}`))
	assert.Error(t, err)
}

func TestCode(t *testing.T) {
	nb, err := Decode(json.RawMessage(sample))
	require.NoError(t, err)

	code := nb.Code()
	assert.Contains(t, code, "import pandas as pd\ndf = pd.read_sql(query, conn)\n\ndef top_buildings")
	assert.NotContains(t, code, "## Summary")
	assert.Equal(t, byte('\n'), code[len(code)-1])
}

func TestOutline(t *testing.T) {
	o, err := NewOutliner()
	require.NoError(t, err)

	src := `import pandas as pd
from datetime import date, timedelta

class Meter:
    def reading(self, at):
        return 0

def daily_total(df):
    return df["kwh"].sum()
`
	syms, err := o.Outline(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, syms, 5)

	assert.Equal(t, SymbolImport, syms[0].Kind)
	assert.Equal(t, "import pandas as pd", syms[0].Name)
	assert.Equal(t, 1, syms[0].Line)

	assert.Equal(t, "from datetime import date, timedelta", syms[1].Signature)

	assert.Equal(t, SymbolClass, syms[2].Kind)
	assert.Equal(t, "Meter", syms[2].Name)
	assert.Equal(t, "class Meter", syms[2].Signature)

	assert.Equal(t, SymbolFunction, syms[3].Kind)
	assert.Equal(t, "reading", syms[3].Name)
	assert.Equal(t, 5, syms[3].Line)

	assert.Equal(t, "daily_total", syms[4].Name)
	assert.Equal(t, "def daily_total(df)", syms[4].Signature)
}

func TestOutlineNotebook(t *testing.T) {
	o, err := NewOutliner()
	require.NoError(t, err)
	nb, err := Decode(json.RawMessage(sample))
	require.NoError(t, err)

	outlines, err := o.OutlineNotebook(context.Background(), nb)
	require.NoError(t, err)
	require.Len(t, outlines, 2)

	require.Len(t, outlines[0], 1)
	assert.Equal(t, SymbolImport, outlines[0][0].Kind)

	require.Len(t, outlines[1], 1)
	assert.Equal(t, "top_buildings", outlines[1][0].Name)
}
