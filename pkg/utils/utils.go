package utils

import "time"

// BiweeklyDueDate returns the due date of installment n: the loan start
// date plus 14*n days. Sequence numbers start at 1.
func BiweeklyDueDate(startDate time.Time, sequence int) time.Time {
	return startDate.AddDate(0, 0, 14*sequence)
}

// AgeAt returns full years between a date of birth and a reference date.
func AgeAt(dateOfBirth, at time.Time) int {
	years := at.Year() - dateOfBirth.Year()
	anniversary := dateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// Today returns midnight of the timestamp's calendar day in its own
// location, the granularity due dates use. Truncating the instant instead
// would pin the day boundary to UTC whatever timezone the schedules run in.
func Today(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}

// IsPastDue reports whether a due date has passed relative to now, at day
// granularity. The due day itself is not yet overdue.
func IsPastDue(dueDate, now time.Time) bool {
	return dueDate.Before(Today(now))
}
