package editor

import "naskah/pkg/logger"

// Notifier shows the user the outcome of an operation. Failures are never fatal.
type Notifier interface {
	Success(msg string)
	Failure(msg string, err error)
}

// LogNotifier reports through the global logger.
type LogNotifier struct{}

func (LogNotifier) Success(msg string) {
	logger.Sugar.Info(msg)
}

func (LogNotifier) Failure(msg string, err error) {
	logger.Sugar.Errorf("%s: %v", msg, err)
}
