package types

// RunMode is the mode the process runs in
type RunMode string

const (
	ModeScheduler RunMode = "scheduler"
	ModeWorker    RunMode = "worker"
	// ModeLocal runs the sweep and the worker in one process
	ModeLocal RunMode = "local"
)

// LogLevel is the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) String() string {
	return string(l)
}
