package obsio

import (
	"io"

	"github.com/star/rescor/internal/gnss"
)

// EpochReader yields input epochs; io.EOF ends the stream.
type EpochReader interface {
	Read() (gnss.Epoch, error)
}

// EpochWriter accepts annotated epochs and can also encode input epochs.
type EpochWriter interface {
	Write(gnss.AnnotatedEpoch) error
	WriteEpoch(gnss.Epoch) error
}

// NewReader returns a reader for format f.
func NewReader(f Format, r io.Reader) EpochReader {
	if f == FormatMsgpack {
		return NewMsgpackReader(r)
	}
	return NewJSONReader(r)
}

// NewWriter returns a writer for format f.
func NewWriter(f Format, w io.Writer) EpochWriter {
	if f == FormatMsgpack {
		return NewMsgpackWriter(w)
	}
	return NewJSONWriter(w)
}
