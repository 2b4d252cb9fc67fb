package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin leveled wrapper over logrus with rotating file output.
type Logger struct {
	log *logrus.Logger
}

// New builds a Logger writing to both a rotating file under dir and stdout.
func New(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "sensebridge.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
	}
	l.SetOutput(io.MultiWriter(rotator, os.Stdout))

	return &Logger{log: l}, nil
}

// NewNop returns a Logger that discards everything; used in tests.
func NewNop() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{log: l}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}
