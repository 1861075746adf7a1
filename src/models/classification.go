package models

import "fmt"

// Classification labels the quality of one move. The engine-derived labels
// are ordered from worst to best so they can be compared directly.
type Classification int

const (
	Unclassified Classification = iota
	Blunder
	Mistake
	Inaccuracy
	Good
	Excellent
	Best
	// Forced and Book are assigned from the game context, not from scores.
	Forced
	Book
)

var classificationNames = map[Classification]string{
	Unclassified: "unclassified",
	Blunder:      "blunder",
	Mistake:      "mistake",
	Inaccuracy:   "inaccuracy",
	Good:         "good",
	Excellent:    "excellent",
	Best:         "best",
	Forced:       "forced",
	Book:         "book",
}

func (c Classification) String() string {
	if name, ok := classificationNames[c]; ok {
		return name
	}
	return fmt.Sprintf("classification(%d)", int(c))
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Classification) UnmarshalText(text []byte) error {
	for value, name := range classificationNames {
		if name == string(text) {
			*c = value
			return nil
		}
	}
	return fmt.Errorf("unknown classification %q", text)
}
