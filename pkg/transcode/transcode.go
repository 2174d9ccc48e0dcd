// Package transcode converts pages fetched from the source site from its
// legacy encoding to UTF-8 before any parsing happens.
package transcode

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Transcoder decodes bytes in one source encoding to UTF-8
type Transcoder struct {
	name string
	enc  encoding.Encoding
}

// New returns a Transcoder for a WHATWG encoding label such as "gbk",
// "gb18030" or "utf-8".
func New(label string) (*Transcoder, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported source encoding %q: %w", label, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}
	return &Transcoder{name: name, enc: enc}, nil
}

// Name returns the canonical name of the source encoding
func (t *Transcoder) Name() string {
	return t.name
}

// ToCanonical decodes raw into a UTF-8 string. Byte sequences that are not
// valid in the source encoding become U+FFFD.
func (t *Transcoder) ToCanonical(raw []byte) (string, error) {
	if t.enc == unicode.UTF8 {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(t.enc.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", t.name, err)
	}
	return string(out), nil
}

// Reader wraps r so that reads yield UTF-8
func (t *Transcoder) Reader(r io.Reader) io.Reader {
	return transform.NewReader(r, t.enc.NewDecoder())
}
