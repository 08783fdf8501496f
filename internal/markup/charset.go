package markup

import (
	"bufio"
	"bytes"
	"io"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// document wraps a report stream for encoding/xml. A byte order mark
// settles the encoding and the declared label is then ignored.
type document struct {
	r       io.Reader
	sniffed bool
}

func newDocument(r io.Reader) *document {
	br := bufio.NewReader(r)
	d := &document{r: br}
	head, _ := br.Peek(len(bomUTF8))
	switch {
	case bytes.HasPrefix(head, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		d.sniffed = true
	case bytes.HasPrefix(head, bomUTF16LE):
		d.r = transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
		d.sniffed = true
	case bytes.HasPrefix(head, bomUTF16BE):
		d.r = transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
		d.sniffed = true
	}
	return d
}

// charsetReader decodes a declared encoding using the WHATWG label table,
// where ISO-8859-1 means windows-1252.
func (d *document) charsetReader(label string, input io.Reader) (io.Reader, error) {
	if d.sniffed {
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}
