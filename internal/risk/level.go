// Package risk maps rainfall and river level to one of four ordered flood risk levels.
package risk

import "fmt"

// Level is the ordinal risk level. The ordinal values are shared with the trained model
// and must not change.
type Level int

const (
	Safe    Level = 0
	Caution Level = 1
	Danger  Level = 2
	Severe  Level = 3
)

var labels = [...]string{
	Safe:    "안전",
	Caution: "주의",
	Danger:  "위험",
	Severe:  "심각",
}

// String returns the display label.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return labels[l]
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= Safe && l <= Severe
}

// FromOrdinal converts a model output to a Level.
func FromOrdinal(ordinal int) (Level, error) {
	l := Level(ordinal)
	if !l.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownOrdinal, ordinal)
	}
	return l, nil
}

// ParseLabel converts a display label back to a Level.
func ParseLabel(label string) (Level, bool) {
	for i, s := range labels {
		if s == label {
			return Level(i), true
		}
	}
	return 0, false
}

// Labels returns the four labels in ordinal order.
func Labels() []string {
	out := make([]string, len(labels))
	copy(out, labels[:])
	return out
}
