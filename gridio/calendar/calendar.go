// Package calendar does arithmetic on Julian dates (yyyyddd) and times
// (hhmmss) as used in grid file headers. Time steps share the hhmmss
// encoding but their hour field is unbounded, so 1000000 is a 100 hour step.
package calendar

import (
	"time"
)

const (
	secondsPerDay = 86400
)

var epoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// IsLeap reports whether year has 366 days.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear is 365 or 366.
func DaysInYear(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

// Split breaks a Julian date into year and day of year.
func Split(date int) (year, day int) {
	return date / 1000, date % 1000
}

// ValidDate checks a yyyyddd date: year 1-9999 and day within the year.
func ValidDate(date int) bool {
	if date < 0 {
		return false
	}
	year, day := Split(date)
	return year >= 1 && year <= 9999 && day >= 1 && day <= DaysInYear(year)
}

// ValidTime checks a time of day in hhmmss.
func ValidTime(t int) bool {
	return t >= 0 && t/10000 < 24 && ValidStep(t)
}

// ValidStep checks a non-negative hhmmss duration.
func ValidStep(step int) bool {
	return step >= 0 && step/100%100 < 60 && step%100 < 60
}

// StepSeconds converts an hhmmss duration to seconds.
func StepSeconds(step int) int64 {
	return int64(step/10000)*3600 + int64(step/100%100)*60 + int64(step%100)
}

// ToTime converts a date and time to a UTC time. Out-of-range days, hours
// and minutes roll over.
func ToTime(date, t int) time.Time {
	year, day := Split(date)
	return time.Date(year, time.January, day, t/10000, t/100%100, t%100, 0, time.UTC)
}

// FromTime converts a UTC time back to a date and time.
func FromTime(tm time.Time) (date, t int) {
	tm = tm.UTC()
	date = tm.Year()*1000 + tm.YearDay()
	t = tm.Hour()*10000 + tm.Minute()*100 + tm.Second()
	return date, t
}

// Seconds is the instant of date and time in seconds since 0001-01-01.
func Seconds(date, t int) int64 {
	return ToTime(date, t).Unix() - epoch.Unix()
}

// FromSeconds is the inverse of Seconds.
func FromSeconds(sec int64) (date, t int) {
	days := sec / secondsPerDay
	rem := sec % secondsPerDay
	if rem < 0 {
		days--
		rem += secondsPerDay
	}
	tm := epoch.AddDate(0, 0, int(days)).Add(time.Duration(rem) * time.Second)
	return FromTime(tm)
}

// Normalize rolls a date and time with overflowing fields (hour 24 or more,
// day past the end of the year) into canonical form.
func Normalize(date, t int) (int, int) {
	return FromSeconds(Seconds(date, t))
}

// Add advances date and time by one hhmmss step.
func Add(date, t, step int) (int, int) {
	return AddSteps(date, t, step, 1)
}

// AddSteps advances date and time by n steps. n may be negative.
func AddSteps(date, t, step, n int) (int, int) {
	return FromSeconds(Seconds(date, t) + int64(n)*StepSeconds(step))
}

// Compare orders two date/time pairs, returning -1, 0 or 1.
func Compare(date1, t1, date2, t2 int) int {
	a, b := Seconds(date1, t1), Seconds(date2, t2)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
