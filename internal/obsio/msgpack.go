package obsio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/star/rescor/internal/gnss"
)

// MsgpackReader decodes a stream of MessagePack epochs. Field names follow
// the JSON encoding.
type MsgpackReader struct {
	dec *msgpack.Decoder
	n   int
}

// NewMsgpackReader reads epochs from r.
func NewMsgpackReader(r io.Reader) *MsgpackReader {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	dec.SetCustomStructTag("json")
	return &MsgpackReader{dec: dec}
}

// Read returns the next epoch, or io.EOF.
func (r *MsgpackReader) Read() (gnss.Epoch, error) {
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

// MsgpackWriter encodes annotated epochs back to back.
type MsgpackWriter struct {
	enc *msgpack.Encoder
}

// NewMsgpackWriter writes epochs to w.
func NewMsgpackWriter(w io.Writer) *MsgpackWriter {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return &MsgpackWriter{enc: enc}
}

// Write encodes a.
func (w *MsgpackWriter) Write(a gnss.AnnotatedEpoch) error {
	return w.enc.Encode(annotatedToWire(a))
}

// WriteEpoch encodes an input epoch, for producing pipeline input.
func (w *MsgpackWriter) WriteEpoch(e gnss.Epoch) error {
	return w.enc.Encode(epochToWire(e))
}
