package moysklad

import (
	"strings"
	"time"
)

// dateLayouts lists the formats the API has been seen to use for date
// attribute values, tried in order.
var dateLayouts = []string{
	"02.01.2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02",
}

// parseDate parses an attribute value against the known layouts.
func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
