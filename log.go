package zedupdate

import "github.com/zedloc/zed-updater/internal"

// Logger interface. Compatible with standard log.Logger
type Logger = internal.Logger

var log = internal.Log

// SetLogger redirects all logs of the module (including the backup, schedule,
// settings and update packages) to the logger defined in parameter.
// By default logs are not sent anywhere.
func SetLogger(logger Logger) {
	internal.SetLogger(logger)
}
