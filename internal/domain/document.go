package domain

import (
	"strings"
	"time"
)

// DocumentRecord is the structured output of the ID-card decoding boundary.
// Parsing the card's binary encoding is external; the core only consumes
// this record.
type DocumentRecord struct {
	FullName    string
	ReferenceID string // the physical document's reference number
	DateOfBirth string // YYYY-MM-DD as printed on the card; may be empty
	AgeYears    int    // decoded age, used when DateOfBirth is absent
}

// Age resolves the holder's age in years, preferring the date of birth when
// it parses. Returns 0 when neither field is usable.
func (d DocumentRecord) Age(now time.Time) int {
	if d.DateOfBirth != "" {
		if t, err := time.Parse("2006-01-02", d.DateOfBirth); err == nil {
			years := int(now.Sub(t).Hours() / 24 / 365.25)
			if years >= 0 {
				return years
			}
		}
	}
	return d.AgeYears
}

// Seed returns the stable per-document seed a proof identifier derives from:
// the document reference number, falling back to the holder's name when the
// card carries no usable reference.
func (d DocumentRecord) Seed() string {
	if ref := strings.TrimSpace(d.ReferenceID); ref != "" {
		return ref
	}
	return strings.TrimSpace(d.FullName)
}
