package acquire

import "github.com/sirupsen/logrus"

var log = logrus.NewEntry(logrus.StandardLogger())

func Init(logger *logrus.Logger) error {
	log = logger.WithFields(logrus.Fields{
		"component": "acquire",
	})
	return nil
}

// Reporter receives progress of an acquisition. *jobs.Job satisfies it.
type Reporter interface {
	SetProgress(percent int)
	SetMessage(msg string)
}
