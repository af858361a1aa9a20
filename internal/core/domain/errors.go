package domain

import "errors"

var (
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrAlreadyStreaming = errors.New("already streaming")
	ErrStartPending     = errors.New("a stream start is already in progress")
	ErrStartCancelled   = errors.New("stream start cancelled by a stop request")
	ErrNotStreaming     = errors.New("not streaming")
	ErrConfigSuperseded = errors.New("config apply superseded by a newer request")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrProcessNotFound  = errors.New("process not found")
)
