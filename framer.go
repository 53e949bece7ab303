package ndchat

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineFramer reassembles newline-delimited records from chunks that arrive
// at arbitrary boundaries. The buffer always holds exactly the text received
// after the last newline seen.
type LineFramer struct {
	buf strings.Builder
}

// Feed appends chunk to the buffer and returns every record completed by it,
// in order, without their newline. The last, possibly incomplete, segment
// stays buffered. Records may be blank; callers decide whether to skip them.
func (f *LineFramer) Feed(chunk string) []string {
	if strings.IndexByte(chunk, '\n') < 0 {
		f.buf.WriteString(chunk)
		return nil
	}
	f.buf.WriteString(chunk)
	lines := strings.Split(f.buf.String(), "\n")
	rest := lines[len(lines)-1]
	f.buf.Reset()
	f.buf.WriteString(rest)
	return lines[:len(lines)-1]
}

// Flush returns the unterminated remainder as a final record and clears the
// buffer. It reports false when the remainder is empty or whitespace-only.
func (f *LineFramer) Flush() (string, bool) {
	rest := f.buf.String()
	f.buf.Reset()
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}

// Buffered returns the text received since the last newline.
func (f *LineFramer) Buffered() string {
	return f.buf.String()
}

// TextDecoder decodes UTF-8 incrementally. A multi-byte character split
// across two chunks is held back until its remaining bytes arrive. Invalid
// sequences become U+FFFD and a leading byte order mark is dropped.
type TextDecoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

// NewTextDecoder creates a TextDecoder.
func NewTextDecoder() *TextDecoder {
	return &TextDecoder{
		t:   unicode.UTF8BOM.NewDecoder(),
		dst: make([]byte, 4096),
	}
}

// Decode decodes p in streaming mode. Bytes of an incomplete trailing
// character are carried into the next call.
func (d *TextDecoder) Decode(p []byte) string {
	d.pending = append(d.pending, p...)
	return d.run(false)
}

// Finish decodes whatever is still pending as the end of the stream and
// resets the decoder.
func (d *TextDecoder) Finish() string {
	out := d.run(true)
	d.pending = d.pending[:0]
	d.t.Reset()
	return out
}

func (d *TextDecoder) run(atEOF bool) string {
	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, d.pending, atEOF)
		out.Write(d.dst[:nDst])
		d.pending = d.pending[nSrc:]
		switch err {
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
			continue
		default:
			// nil, or ErrShortSrc with an incomplete character held back.
			if len(d.pending) == 0 {
				d.pending = nil
			}
			return out.String()
		}
	}
}
