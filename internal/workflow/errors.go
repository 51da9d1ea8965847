package workflow

import "errors"

var (
	// ErrMaxStepsExceeded is returned when a run takes more steps than allowed.
	ErrMaxStepsExceeded = errors.New("workflow: exceeded maximum steps")
	// ErrNoRoute is returned when no edge leaves the current node.
	ErrNoRoute = errors.New("workflow: no route from node")
	// ErrUnknownNode is returned when an edge points at an unregistered node.
	ErrUnknownNode = errors.New("workflow: unknown node")
)
