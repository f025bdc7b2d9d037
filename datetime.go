package fb

import (
	"time"
)

// ISC_DATE counts days from 1858-11-17; ISC_TIME counts 1/10000 seconds from
// midnight. A TIMESTAMP is an ISC_DATE followed by an ISC_TIME.
const (
	mjdUnixEpoch    = 40587 // 1970-01-01 as days since 1858-11-17
	secondsPerDay   = 86400
	timeUnitsPerSec = 10000
	nanosPerUnit    = int64(time.Second) / timeUnitsPerSec
)

// minEncodableDate is the earliest calendar day the packed date format holds.
// Earlier values are clamped to it.
var minEncodableDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// timeEpochDay is the day TIME values are pinned to when decoded.
var timeEpochDay = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// encodeDate packs the calendar day of t (in t's own location).
func encodeDate(t time.Time) int32 {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if day.Before(minEncodableDate) {
		day = minEncodableDate
	}
	return int32(day.Unix()/secondsPerDay + mjdUnixEpoch)
}

// decodeDate unpacks a day count into year, month and day.
func decodeDate(days int32) (int, time.Month, int) {
	t := time.Unix((int64(days)-mjdUnixEpoch)*secondsPerDay, 0).UTC()
	return t.Date()
}

// encodeTime packs the wall clock of t, truncated to 1/10000 s.
func encodeTime(t time.Time) uint32 {
	h, m, s := t.Clock()
	units := uint32(h*3600+m*60+s) * timeUnitsPerSec
	return units + uint32(int64(t.Nanosecond())/nanosPerUnit)
}

// decodeTime unpacks a time of day.
func decodeTime(units uint32) (h, m, s, nsec int) {
	secs := int(units / timeUnitsPerSec)
	frac := int64(units % timeUnitsPerSec)
	return secs / 3600, (secs / 60) % 60, secs % 60, int(frac * nanosPerUnit)
}

// encodeTimestamp packs t after moving it into loc.
func encodeTimestamp(t time.Time, loc *time.Location) (int32, uint32) {
	t = t.In(loc)
	if t.Before(minEncodableDate.In(loc)) {
		return encodeDate(minEncodableDate), 0
	}
	return encodeDate(t), encodeTime(t)
}

// decodeTimestamp builds a time.Time in loc.
func decodeTimestamp(days int32, units uint32, loc *time.Location) time.Time {
	y, mo, d := decodeDate(days)
	h, mi, s, ns := decodeTime(units)
	return time.Date(y, mo, d, h, mi, s, ns, loc)
}

// dateValue builds the value a DATE column decodes to: midnight UTC.
func dateValue(days int32) time.Time {
	y, m, d := decodeDate(days)
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// timeValue builds the value a TIME column decodes to: the time of day in UTC
// on a fixed day.
func timeValue(units uint32) time.Time {
	h, m, s, ns := decodeTime(units)
	return time.Date(timeEpochDay.Year(), timeEpochDay.Month(), timeEpochDay.Day(), h, m, s, ns, time.UTC)
}
