package schedule

import (
	"strings"
	"time"

	"github.com/zedloc/zed-updater/settings"
)

const defaultIntervalHours = 24

// Config is the part of the settings deciding when checks run.
//
// A cron expression wins over a time of day, which wins over the interval.
type Config struct {
	IntervalHours int
	// CheckTime is "HH:MM", local time
	CheckTime string
	// CheckDays restricts CheckTime to these weekdays (every day when empty)
	CheckDays []string
	Cron      string
}

// ConfigFromSettings extracts the schedule from a settings snapshot.
func ConfigFromSettings(s settings.Settings) Config {
	return Config{
		IntervalHours: s.CheckIntervalHours,
		CheckTime:     s.CheckTime,
		CheckDays:     s.CheckDays,
		Cron:          s.CheckCron,
	}
}

// NextRun returns the time of the next check after now. An invalid cron expression
// or time of day is logged and the next simpler mode is used instead.
func NextRun(now time.Time, config Config) time.Time {
	if expression := strings.TrimSpace(config.Cron); expression != "" {
		schedule, err := settings.CronParser.Parse(expression)
		if err == nil {
			return schedule.Next(now)
		}
		log.Printf("invalid cron expression %q, ignored: %s", expression, err)
	}
	if strings.TrimSpace(config.CheckTime) != "" {
		next, err := nextTimeOfDay(now, config.CheckTime, config.CheckDays)
		if err == nil {
			return next
		}
		log.Printf("%s, using the check interval", err)
	}
	hours := config.IntervalHours
	if hours < 1 {
		hours = defaultIntervalHours
	}
	return now.Add(time.Duration(hours) * time.Hour)
}

// nextTimeOfDay is the first HH:MM strictly after now falling on one of days.
func nextTimeOfDay(now time.Time, checkTime string, days []string) (time.Time, error) {
	hour, minute, err := settings.ParseTimeOfDay(checkTime)
	if err != nil {
		return time.Time{}, err
	}
	allowed := make(map[time.Weekday]bool, len(days))
	for _, name := range days {
		day, err := settings.ParseWeekday(name)
		if err != nil {
			log.Printf("%s, ignored", err)
			continue
		}
		allowed[day] = true
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = addDays(next, 1, hour, minute)
	}
	for range 7 {
		if len(allowed) == 0 || allowed[next.Weekday()] {
			break
		}
		next = addDays(next, 1, hour, minute)
	}
	return next, nil
}

// addDays keeps the wall clock time across daylight saving changes.
func addDays(t time.Time, days, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days, hour, minute, 0, 0, t.Location())
}
