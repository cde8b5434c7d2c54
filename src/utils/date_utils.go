package utils

import "time"

// ISODate is the storage format for trade dates.
const ISODate = "2006-01-02"

// MonthOf returns the YYYY-MM prefix of an ISO date.
func MonthOf(isoDate string) string {
	if len(isoDate) < 7 {
		return isoDate
	}
	return isoDate[:7]
}

// YearOf returns the YYYY prefix of an ISO date.
func YearOf(isoDate string) string {
	if len(isoDate) < 4 {
		return isoDate
	}
	return isoDate[:4]
}

// ParseISODate parses YYYY-MM-DD, returning false when the value is not a valid date.
func ParseISODate(value string) (time.Time, bool) {
	t, err := time.Parse(ISODate, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
