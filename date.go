package rofat

import (
	"time"
)

// ParseDate decodes a FAT date stamp:
//
//	Bits 0-4:  day of month, 1-31
//	Bits 5-8:  month of year, 1-12
//	Bits 9-15: years since 1980, 0-127
//
// A day or month of 0 is invalid and results in time.Time{} so that IsZero() can be used.
// Months above 12 roll over into the next year like time.Date does.
func ParseDate(input uint16) time.Time {
	day := int(input & 0x1F)
	month := int(input >> 5 & 0x0F)
	year := 1980 + int(input>>9)

	if day == 0 || month == 0 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ParseTime decodes a FAT time stamp with a granularity of 2 seconds:
//
//	Bits 0-4:   2 second count, 0-29
//	Bits 5-10:  minutes, 0-59
//	Bits 11-15: hours, 0-23
//
// The result is a duration since midnight, capped at 23:59:59 for out of range fields.
func ParseTime(input uint16) time.Duration {
	d := time.Duration(input>>11)*time.Hour +
		time.Duration(input>>5&0x3F)*time.Minute +
		time.Duration(input&0x1F)*2*time.Second

	if limit := 24*time.Hour - time.Second; d > limit {
		return limit
	}
	return d
}

// timestamp combines a date, a time and the optional count of 10 ms units (0-199).
func timestamp(date, tm uint16, tenths uint8) time.Time {
	day := ParseDate(date)
	if day.IsZero() {
		return time.Time{}
	}
	if tenths > 199 {
		tenths = 0
	}
	return day.Add(ParseTime(tm) + time.Duration(tenths)*10*time.Millisecond)
}

// encodeTimestamp is the inverse of timestamp for times between 1980 and 2107.
func encodeTimestamp(t time.Time) (date, tm uint16, tenths uint8) {
	t = t.UTC()
	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	tenths = uint8(t.Second()%2*100 + t.Nanosecond()/int(10*time.Millisecond))
	return date, tm, tenths
}
