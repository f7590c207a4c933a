// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package rlog is the sender and receiver's logging shim. It wraps
// logrus the way the original congestion-control lab's sender and
// receiver wrapped stderr: one line per event, stamped with logrus's own
// timestamp and, through WithClock, tagged with the millisecond clock the
// caller is already tracking, so log lines line up with xplot output and
// metrics.
package rlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the package's single entry point: a logrus.Logger configured
// with the host program's verbosity and output stream.
type Logger struct {
	*logrus.Logger
}

// New returns a Logger writing text-formatted lines to stderr. debug
// raises the level to Debug; otherwise only Info and above are emitted.
func New(debug bool) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   false,
		TimestampFormat: "15:04:05.000",
	})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &Logger{Logger: l}
}

// WithClock returns an entry tagged with the controller's logical
// millisecond clock, for correlating a log line with an xplot trace.
func (l *Logger) WithClock(clockMs uint64) *logrus.Entry {
	return l.WithField("clock_ms", clockMs)
}
