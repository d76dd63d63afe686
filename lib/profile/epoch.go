package profile

import (
	"fmt"
	"time"
)

// Bin is the name of the bin holding the segment map of a profile
const Bin = "u"

// Epoch is the reference instant of the hour domain
var Epoch = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// HourOf returns the number of whole hours between the epoch and t, rounded down
// (instants before the epoch yield negative hours).
func HourOf(t time.Time) int64 {
	d := t.Sub(Epoch)
	h := int64(d / time.Hour)
	if d%time.Hour < 0 {
		h--
	}
	return h
}

// TimeOf returns the start of the given hour
func TimeOf(hour int64) time.Time {
	return Epoch.Add(time.Duration(hour) * time.Hour)
}

// StartOfDay returns midnight (UTC) of the day t falls on
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UserKey returns the record key of profile id
func UserKey(id int64) string {
	return fmt.Sprintf("u%d", id)
}
