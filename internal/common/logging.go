package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogging configures the process-wide logger from LOG_LEVEL and LOG_FORMAT.
func SetupLogging() *logrus.Logger {
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(GetenvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if GetenvOrDefault("LOG_FORMAT", "text") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
