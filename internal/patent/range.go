package patent

import (
	"fmt"
	"iter"
)

// Range is the half-open interval [Start, End) of document numbers to crawl.
type Range struct {
	Start DocumentID `mapstructure:"start"`
	End   DocumentID `mapstructure:"end"`
}

// Validate rejects empty, inverted or negative ranges.
func (r Range) Validate() error {
	if r.Start < 0 {
		return fmt.Errorf("range.start must be >= 0, got %d", r.Start)
	}
	if r.Start >= r.End {
		return fmt.Errorf("range.start (%d) must be < range.end (%d)", r.Start, r.End)
	}
	return nil
}

// Len returns the number of documents in the range.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return int(r.End - r.Start)
}

// IDs yields every document number in ascending order. The sequence can be
// ranged over any number of times.
func (r Range) IDs() iter.Seq[DocumentID] {
	return func(yield func(DocumentID) bool) {
		for id := r.Start; id < r.End; id++ {
			if !yield(id) {
				return
			}
		}
	}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}
