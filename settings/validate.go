package settings

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekday accepts full or three letter english day names, in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("invalid day of week %q", name)
	}
	return day, nil
}

// ParseTimeOfDay parses a 24h "HH:MM" string.
func ParseTimeOfDay(value string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time format %q (use HH:MM)", value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// CronParser is the parser used for check_cron: standard 5 fields plus descriptors such as @daily.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate returns the problems found in the current configuration, keyed by setting name.
// An empty map means the configuration is usable.
func (s *Store) Validate() map[string]string {
	return s.Snapshot().Validate()
}

func (c Settings) Validate() map[string]string {
	problems := make(map[string]string)

	if strings.TrimSpace(c.InstallPath) == "" {
		problems[KeyInstallPath] = "install path cannot be empty"
	}
	if c.CheckIntervalHours < 1 {
		problems[KeyCheckIntervalHours] = "check interval must be at least 1 hour"
	}
	if c.BackupCount < 1 {
		problems[KeyBackupCount] = "backup count must be at least 1"
	}
	if c.RetryCount < 1 {
		problems[KeyRetryCount] = "retry count must be at least 1"
	}
	if c.DownloadTimeout < 1 {
		problems[KeyDownloadTimeout] = "download timeout must be at least 1 second"
	}
	if c.BackoffFactor < 1 {
		problems[KeyBackoffFactor] = "backoff factor must be at least 1"
	}
	if c.CheckTime != "" {
		if _, _, err := ParseTimeOfDay(c.CheckTime); err != nil {
			problems[KeyCheckTime] = err.Error()
		}
	}
	for _, day := range c.CheckDays {
		if _, err := ParseWeekday(day); err != nil {
			problems[KeyCheckDays] = err.Error()
			break
		}
	}
	if c.CheckCron != "" {
		if _, err := CronParser.Parse(c.CheckCron); err != nil {
			problems[KeyCheckCron] = fmt.Sprintf("invalid cron expression: %s", err)
		}
	}
	switch c.ReleaseSource {
	case "", "github", "gitea", "gitlab", "http":
	default:
		problems[KeyReleaseSource] = fmt.Sprintf("unknown release source %q", c.ReleaseSource)
	}
	if c.ReleaseSource == "http" && c.ReleaseAPIURL == "" {
		problems[KeyReleaseAPIURL] = "an http release source needs a base URL"
	}
	if c.ProxyURL != "" {
		if _, err := parseProxyURL(c.ProxyURL); err != nil {
			problems[KeyProxyURL] = err.Error()
		}
	}
	return problems
}

// ParseProxyURL accepts http, https and socks5 proxy URLs. Errors wrap ErrConfiguration.
func ParseProxyURL(value string) (*url.URL, error) {
	proxy, err := parseProxyURL(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return proxy, nil
}

func parseProxyURL(value string) (*url.URL, error) {
	proxy, err := url.Parse(value)
	if err != nil || proxy.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q", value)
	}
	switch proxy.Scheme {
	case "http", "https", "socks5":
		return proxy, nil
	}
	return nil, fmt.Errorf("unsupported proxy scheme %q", proxy.Scheme)
}
