// Package alarm contains core domain types for the alarm clock.
//
// It defines Alarm (what the user configured), WeekdaySet (the weekly repeat
// mask), AlertType and ScheduledTrigger (a wakeup registered with the host
// timer) together with the dedup tokens used to find outstanding triggers.
package alarm
