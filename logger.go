package athenaq

import (
	"github.com/kent-id/athenaq/logging"
)

type LogLevel = logging.Level

const (
	LogLevelDebug = logging.LevelDebug
	LogLevelInfo  = logging.LevelInfo
	LogLevelWarn  = logging.LevelWarn
	LogLevelError = logging.LevelError
)

// SetLogLevel overrides the log level for the athenaq packages, default is WARN
func SetLogLevel(lv LogLevel) {
	logging.SetLevel(lv)
}
