// Package timestamp turns the loosely formatted device timestamps found in
// uploaded spreadsheets into time.Time values.
package timestamp

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Layouts are tried in order and the first match wins. Day-first layouts
// come before month-first ones, so "03/04/25 10:00" reads as 3 April.
var Layouts = []string{
	"2/1/06 15:04",
	"1/2/06 15:04",
	"2/1/2006 15:04",
	"1/2/2006 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2-1-2006 15:04",
	"1-2-2006 15:04",
	"2/1/06 15:04:05",
	"1/2/06 15:04:05",
}

var blanks = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
	"null": {},
}

// Normalize returns the canonical instant for v and whether it could be parsed.
func Normalize(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
		return time.Time{}, false
	case nil:
		return time.Time{}, false
	}

	s := strings.TrimSpace(fmt.Sprint(v))
	if _, blank := blanks[strings.ToLower(s)]; blank {
		return time.Time{}, false
	}

	// time.Parse accepts a fractional second after "05" even though no
	// layout has one; such values are not valid device timestamps.
	if strings.Contains(s, ".") {
		log.Printf("failed to parse timestamp: %q (type: %T)", s, v)
		return time.Time{}, false
	}

	for _, layout := range Layouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}

	log.Printf("failed to parse timestamp: %q (type: %T)", s, v)
	return time.Time{}, false
}
