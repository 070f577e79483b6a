package app

import "time"

// DefaultReminderMinHours is the minimum wall-clock gap between fulfillment
// reminders for a single request.
const DefaultReminderMinHours = 12

// CanRemind reports whether a fulfillment reminder may be sent. A request that
// has never been reminded may always be; otherwise the elapsed time since the
// last reminder must be at least minHoursBetween hours.
func CanRemind(lastReminderSentAt *time.Time, minHoursBetween int) bool {
	if lastReminderSentAt == nil {
		return true
	}
	return time.Since(*lastReminderSentAt) >= time.Duration(minHoursBetween)*time.Hour
}
