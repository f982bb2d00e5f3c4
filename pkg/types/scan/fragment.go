// Package scan defines the public data model shared by the recognition
// engine, the scan service and its clients: OCR fragments, the allocation
// buckets (piles) and the resulting deck list.
package scan

import (
	"fmt"
	"sort"

	"github.com/turtacn/deckscan/pkg/errors"
)

// BoundingBox is a polygon given as a flat, even-length list of integer
// coordinates: x0, y0, x1, y1, ...
type BoundingBox []int

// Validate returns an InputError when the box is empty or has an odd number
// of coordinates.
func (b BoundingBox) Validate() error {
	if len(b) == 0 {
		return errors.InputError("bounding box is empty")
	}
	if len(b)%2 != 0 {
		return errors.InputError("bounding box has odd coordinate arity").
			WithDetail(fmt.Sprintf("len=%d", len(b)))
	}
	return nil
}

// Origin returns the first vertex of the polygon.
func (b BoundingBox) Origin() (x, y int) {
	if len(b) < 2 {
		return 0, 0
	}
	return b[0], b[1]
}

// Less orders boxes top-to-bottom then left-to-right, falling back to the
// remaining coordinates.
func (b BoundingBox) Less(o BoundingBox) bool {
	bx, by := b.Origin()
	ox, oy := o.Origin()
	if by != oy {
		return by < oy
	}
	if bx != ox {
		return bx < ox
	}
	for i := 2; i < len(b) && i < len(o); i++ {
		if b[i] != o[i] {
			return b[i] < o[i]
		}
	}
	return len(b) < len(o)
}

// SquaredDistance returns the squared Euclidean distance between the origins
// of two boxes.
func (b BoundingBox) SquaredDistance(o BoundingBox) int {
	bx, by := b.Origin()
	ox, oy := o.Origin()
	dx, dy := bx-ox, by-oy
	return dx*dx + dy*dy
}

// Fragment is one OCR observation: where the text was seen and what was read.
type Fragment struct {
	Box  BoundingBox `json:"box"`
	Text string      `json:"text"`
}

// ValidateFragments checks every bounding box and reports the first bad one.
func ValidateFragments(fragments []Fragment) error {
	for i, f := range fragments {
		if err := f.Box.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("fragment %d", i))
		}
	}
	return nil
}

// SortFragments returns a copy of fragments in reading order. The input slice
// is left untouched.
func SortFragments(fragments []Fragment) []Fragment {
	out := make([]Fragment, len(fragments))
	copy(out, fragments)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Box.Less(out[j].Box) {
			return true
		}
		if out[j].Box.Less(out[i].Box) {
			return false
		}
		return out[i].Text < out[j].Text
	})
	return out
}
