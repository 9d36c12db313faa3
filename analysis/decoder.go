package analysis

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// lineDecoder turns arbitrarily fragmented chunks into NDJSON frames.
// Splitting happens on the '\n' byte, which never occurs inside a UTF-8
// multi-byte sequence, so a rune cut by a read boundary is rejoined before
// the line is decoded.
type lineDecoder struct {
	buf []byte
}

// Feed appends chunk and returns the frames of every completed line, plus a
// ParseError for each completed line that could not be decoded.
func (d *lineDecoder) Feed(chunk []byte) ([]frame, []error) {
	d.buf = append(d.buf, chunk...)

	var frames []frame
	var errs []error
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		f, ok, err := decodeLine(line)
		if err != nil {
			errs = append(errs, err)
		} else if ok {
			frames = append(frames, f)
		}
		d.buf = d.buf[idx+1:]
	}

	// Reclaim the consumed prefix once nothing is pending.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames, errs
}

// Flush decodes whatever is left once the body is exhausted; the last line of
// a stream is not required to end with a newline.
func (d *lineDecoder) Flush() (frame, bool, error) {
	line := d.buf
	d.buf = nil
	return decodeLine(line)
}

// Pending reports the number of buffered bytes of an unfinished line.
func (d *lineDecoder) Pending() int {
	return len(d.buf)
}

func decodeLine(line []byte) (frame, bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return frame{}, false, nil
	}
	if !utf8.Valid(line) {
		return frame{}, false, &ParseError{Line: string(line), Err: errInvalidUTF8}
	}
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return frame{}, false, &ParseError{Line: string(line), Err: err}
	}
	return f, true, nil
}
