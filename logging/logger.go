// Package logging provides structured logging with logrus.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Logger is a configured logrus.Logger.
var Logger *logrus.Logger

// NewLogger creates and configures a new logrus Logger.
func NewLogger() *logrus.Logger {
	Logger = logrus.New()
	Logger.Out = os.Stdout

	if level, err := logrus.ParseLevel(viper.GetString("log_level")); err == nil {
		Logger.Level = level
	}

	if viper.GetBool("log_textlogging") {
		Logger.Formatter = &logrus.TextFormatter{
			FullTimestamp: true,
		}
	} else {
		Logger.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
			},
		}
	}

	return Logger
}
