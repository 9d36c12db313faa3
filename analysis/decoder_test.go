package analysis

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineDecoderSplitsOnNewline(t *testing.T) {
	var d lineDecoder

	frames, errs := d.Feed([]byte(`{"progress":0.1,"message":"Analyzing"}` + "\n" + `{"progress":0.5,"message":"Running"}` + "\n"))
	require.Empty(t, errs)
	require.Len(t, frames, 2)
	assert.Equal(t, 0.1, *frames[0].Progress)
	assert.Equal(t, "Running", frames[1].Message)
	assert.Zero(t, d.Pending())
}

func TestLineDecoderLineAcrossChunks(t *testing.T) {
	var d lineDecoder

	frames, errs := d.Feed([]byte(`{"progress":0.4,"mess`))
	assert.Empty(t, frames)
	assert.Empty(t, errs)
	assert.Equal(t, len(`{"progress":0.4,"mess`), d.Pending())

	frames, errs = d.Feed([]byte(`age":"Querying"}` + "\n"))
	require.Empty(t, errs)
	require.Len(t, frames, 1)
	assert.Equal(t, "Querying", frames[0].Message)
}

func TestLineDecoderRuneAcrossChunks(t *testing.T) {
	var d lineDecoder

	line := []byte(`{"progress":0.3,"message":"Menghitung ⚡ konsumsi"}` + "\n")
	cut := strings.Index(string(line), "⚡") + 1 // inside the 3-byte sequence

	frames, errs := d.Feed(line[:cut])
	assert.Empty(t, frames)
	assert.Empty(t, errs)

	frames, errs = d.Feed(line[cut:])
	require.Empty(t, errs)
	require.Len(t, frames, 1)
	assert.Equal(t, "Menghitung ⚡ konsumsi", frames[0].Message)
}

func TestLineDecoderMalformedLine(t *testing.T) {
	var d lineDecoder

	input := `{"progress":0.2}` + "\n" +
		`this is not json` + "\n" +
		"\n" +
		`{"progress":0.6}` + "\n"

	frames, errs := d.Feed([]byte(input))
	require.Len(t, frames, 2)
	require.Len(t, errs, 1)

	var perr *ParseError
	require.True(t, errors.As(errs[0], &perr))
	assert.Equal(t, "this is not json", perr.Line)
	assert.Equal(t, 0.6, *frames[1].Progress)
}

func TestLineDecoderInvalidUTF8(t *testing.T) {
	var d lineDecoder

	_, errs := d.Feed([]byte("{\"message\":\"\xff\xfe\"}\n"))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errInvalidUTF8)
}

func TestLineDecoderFlush(t *testing.T) {
	tests := []struct {
		name    string
		pending string
		wantOK  bool
		wantErr bool
	}{
		{name: "empty", pending: "", wantOK: false},
		{name: "whitespace", pending: "  \r", wantOK: false},
		{name: "final line without newline", pending: `{"progress":1.0}`, wantOK: true},
		{name: "truncated json", pending: `{"progress":1.`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d lineDecoder
			frames, errs := d.Feed([]byte(tt.pending))
			require.Empty(t, frames)
			require.Empty(t, errs)

			f, ok, err := d.Flush()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if ok {
				assert.Equal(t, 1.0, *f.Progress)
			}
			assert.Zero(t, d.Pending())
		})
	}
}

func TestLineDecoderCRLF(t *testing.T) {
	var d lineDecoder

	frames, errs := d.Feed([]byte("{\"progress\":0.5,\"message\":\"x\"}\r\n"))
	require.Empty(t, errs)
	require.Len(t, frames, 1)
	assert.Equal(t, "x", frames[0].Message)
}
