package log

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var (
	debug bool
	level = logrus.InfoLevel
)

// Logger is a global interface for remix loggers.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
	Error(...interface{})
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
}

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("REMIX_DEBUG"))
	if err != nil {
		debug = false
	}
}

// SetLevel sets the level for loggers created after this call. Empty
// value keeps the current level.
func SetLevel(lvl string) error {
	if lvl == "" {
		return nil
	}
	l, err := logrus.ParseLevel(lvl)
	if err != nil {
		return err
	}
	level = l
	return nil
}

// GetLogger returns a new logger instance.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Discard returns a logger that drops all entries.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
