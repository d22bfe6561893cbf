package internal

import "sync/atomic"

// Logger interface. Compatible with standard log.Logger
type Logger interface {
	// Print calls Output to print to the standard logger. Arguments are handled in the manner of fmt.Print.
	Print(v ...interface{})
	// Printf calls Output to print to the standard logger. Arguments are handled in the manner of fmt.Printf.
	Printf(format string, v ...interface{})
}

type loggerHolder struct {
	logger Logger
}

var current atomic.Pointer[loggerHolder]

func init() {
	current.Store(&loggerHolder{logger: &emptyLogger{}})
}

// SetLogger redirects the logs of every package of the module to the logger defined in parameter.
// A nil logger discards all logs again.
func SetLogger(logger Logger) {
	if logger == nil {
		logger = &emptyLogger{}
	}
	current.Store(&loggerHolder{logger: logger})
}

// Log is a stable handle packages can keep in a variable:
// it always forwards to the logger installed by SetLogger.
var Log Logger = proxyLogger{}

type proxyLogger struct{}

func (proxyLogger) Print(v ...interface{}) {
	current.Load().logger.Print(v...)
}

func (proxyLogger) Printf(format string, v ...interface{}) {
	current.Load().logger.Printf(format, v...)
}

// emptyLogger to discard all logs by default
type emptyLogger struct{}

func (l *emptyLogger) Print(v ...interface{})                 {}
func (l *emptyLogger) Printf(format string, v ...interface{}) {}
