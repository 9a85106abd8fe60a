package common

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogOption selects the logger of a component. Components are silent unless an option is given.
type LogOption struct {
	LogLevel logrus.Level   // level of a dedicated logger writing to stderr
	Logger   *logrus.Logger // shared logger, takes precedence over LogLevel
}

// StandardLogOption shares the logrus standard logger, so that components follow the level and
// formatter configured on the command line.
func StandardLogOption() LogOption {
	return LogOption{Logger: logrus.StandardLogger()}
}

// NewLogger returns the logger selected by the first option, or one that discards everything.
func NewLogger(opt ...LogOption) *logrus.Logger {
	if len(opt) > 0 && opt[0].Logger != nil {
		return opt[0].Logger
	}

	logger := logrus.New()

	if len(opt) == 0 {
		logger.Out = io.Discard
		return logger
	}

	logger.SetLevel(opt[0].LogLevel)

	return logger
}
