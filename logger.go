package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"media-converter/config"
)

var log *logrus.Logger

// initLogger sets up the process logger from the environment. A bad level
// or format is reported once the logger exists.
func initLogger() {
	var problems []string
	log, problems = newLogger(os.Stdout, config.GetLogLevel(), config.GetLogFormat())
	for _, p := range problems {
		log.Warn(p)
	}
}

// newLogger builds a logger writing to out. Unknown levels fall back to
// debug, unknown formats to text.
func newLogger(out io.Writer, level, format string) (*logrus.Logger, []string) {
	var problems []string

	l := logrus.New()
	l.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		problems = append(problems, fmt.Sprintf("log level: %v, using debug", err))
		lvl = logrus.DebugLevel
	}
	l.SetLevel(lvl)

	caller := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
	}
	switch f := strings.ToLower(format); f {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  "2006-01-02T15:04:05.000Z07:00",
			CallerPrettyfier: caller,
		})
	default:
		if f != "text" && f != "" {
			problems = append(problems, fmt.Sprintf("unknown log format %q, using text", format))
		}
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  "2006-01-02 15:04:05",
			CallerPrettyfier: caller,
		})
	}
	l.SetReportCaller(true)
	return l, problems
}
