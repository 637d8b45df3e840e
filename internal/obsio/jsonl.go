package obsio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/star/rescor/internal/gnss"
)

// JSONReader decodes one epoch per JSON value.
type JSONReader struct {
	dec *json.Decoder
	n   int
}

// NewJSONReader reads epochs from r.
func NewJSONReader(r io.Reader) *JSONReader {
	return &JSONReader{dec: json.NewDecoder(bufio.NewReader(r))}
}

// Read returns the next epoch, or io.EOF.
func (r *JSONReader) Read() (gnss.Epoch, error) {
	var w wireEpoch
	if err := r.dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return gnss.Epoch{}, io.EOF
		}
		return gnss.Epoch{}, fmt.Errorf("decoding epoch %d: %w", r.n+1, err)
	}
	r.n++
	e, err := epochFromWire(w)
	if err != nil {
		return gnss.Epoch{}, fmt.Errorf("epoch %d: %w", r.n, err)
	}
	return e, nil
}

// JSONWriter encodes one annotated epoch per line.
type JSONWriter struct {
	enc *json.Encoder
}

// NewJSONWriter writes epochs to w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

// Write encodes a.
func (w *JSONWriter) Write(a gnss.AnnotatedEpoch) error {
	return w.enc.Encode(annotatedToWire(a))
}

// WriteEpoch encodes an input epoch, for producing pipeline input.
func (w *JSONWriter) WriteEpoch(e gnss.Epoch) error {
	return w.enc.Encode(epochToWire(e))
}
