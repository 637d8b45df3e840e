package refpos

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/star/rescor/internal/gnss"
)

// EpochReader yields epochs until io.EOF.
type EpochReader interface {
	Read() (gnss.Epoch, error)
}

// LoadTableFromStream builds a positions table from the XYZT/DIAG comments
// of a previously written epoch stream. An epoch contributes an entry when
// its comments carry both lines; the entry takes the epoch's time.
func LoadTableFromStream(r EpochReader) (*Table, error) {
	var entries []Entry
	for n := 1; ; n++ {
		e, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading reference stream epoch %d: %w", n, err)
		}

		var (
			p       Position
			hasXYZT bool
		)
		for _, c := range e.Comments {
			if err := p.applyComment(c); err != nil {
				return nil, fmt.Errorf("reference stream epoch %d: %q: %w", n, c, err)
			}
			if strings.HasPrefix(strings.TrimSpace(c), keywordXYZT) {
				hasXYZT = true
			}
		}
		if hasXYZT && p.Valid {
			entries = append(entries, Entry{Time: e.Time.UTC(), Position: p})
		}
	}
	return NewTable(entries)
}

