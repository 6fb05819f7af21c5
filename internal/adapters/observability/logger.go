package observability

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. An unknown level is an error so a typo
// in the config file does not silently hide debug output.
func NewLogger(level string, json bool) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
