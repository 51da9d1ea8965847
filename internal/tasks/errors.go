package tasks

import "errors"

var (
	ErrNotFound     = errors.New("task not found")
	ErrTerminal     = errors.New("task already finished")
	ErrInvalidInput = errors.New("invalid task request")
)
