package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowKeepsKeyOrder(t *testing.T) {
	var r Row
	require.NoError(t, json.Unmarshal([]byte(`{"month":"Jan","kwh":100,"cost":12.5,"building":null}`), &r))

	assert.Equal(t, []string{"month", "kwh", "cost", "building"}, r.Keys)

	v, ok := r.Get("kwh")
	require.True(t, ok)
	assert.Equal(t, json.Number("100"), v)

	v, ok = r.Get("building")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRowDuplicateKeys(t *testing.T) {
	var r Row
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":2,"a":3}`), &r))

	assert.Equal(t, []string{"a", "b"}, r.Keys)
	assert.Equal(t, json.Number("3"), r.Values["a"])
}

func TestRowNested(t *testing.T) {
	var r Row
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Labtek V","floors":[1,2],"meta":{"x":1}}`), &r))

	assert.Equal(t, []string{"name", "floors", "meta"}, r.Keys)
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, r.Values["floors"])
}

func TestRowRejectsNonObject(t *testing.T) {
	var r Row
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
	assert.Error(t, json.Unmarshal([]byte(`"text"`), &r))
}

func TestRowMarshalPreservesOrder(t *testing.T) {
	var r Row
	in := `{"z":1,"a":"two","m":[true]}`
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestDecodeDataset(t *testing.T) {
	rows, err := decodeDataset(nil)
	require.NoError(t, err)
	assert.Nil(t, rows)

	rows, err = decodeDataset(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Nil(t, rows)

	rows, err = decodeDataset(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = decodeDataset(json.RawMessage(`[{"a":1},{"b":2,"a":3}]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"b", "a"}, rows[1].Keys)

	_, err = decodeDataset(json.RawMessage(`{"a":1}`))
	assert.Error(t, err)
}
