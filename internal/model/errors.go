package model

import (
	"errors"
)

var (
	// ErrLaunch is returned when the worker process could not be started,
	// nothing has been streamed to the caller at that point.
	ErrLaunch = errors.New("worker launch failed")
	// ErrStreamRead marks a worker output which ended by a read error
	// instead of EOF.
	ErrStreamRead = errors.New("worker output read failed")
	// ErrNoExitCode is returned by Wait when the worker terminated without
	// an exit code, e.g. killed by a signal.
	ErrNoExitCode           = errors.New("worker exit code unavailable")
	ErrStreamingUnsupported = errors.New("streaming not supported")
)
