package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/jlorenzo681/documind/internal/queue"
	"github.com/jlorenzo681/documind/internal/tasks"
)

// Executor runs one queued task. tasks.Runner satisfies it.
type Executor interface {
	Execute(ctx context.Context, taskID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingTaskID indicates a message without a task id.
type ErrMissingTaskID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingTaskID) Error() string { return "missing task id" }

// ErrProcess indicates execution failed after successful parsing.
type ErrProcess struct {
	TaskID    string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process task"
	}
	return "process task: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message can never succeed.
// Such messages should be deleted rather than retried.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var missing ErrMissingTaskID
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing) ||
		errors.Is(err, tasks.ErrNotFound)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.TaskID) == "" {
		return msg, meta, ErrMissingTaskID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses, validates and executes a message payload.
func HandleMessage(ctx context.Context, exec Executor, body string) error {
	if exec == nil {
		return errors.New("task runner not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}

	ctx = tasks.WithRequestID(ctx, msg.RequestID)
	if err := exec.Execute(ctx, msg.TaskID); err != nil {
		return ErrProcess{TaskID: msg.TaskID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
