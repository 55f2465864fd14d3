package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"tga-backend/internal/jobs"
	"tga-backend/internal/queue"
)

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

// ErrMissingJobID indicates a message without a job id.
type ErrMissingJobID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingJobID) Error() string { return "missing job id" }

// ErrProcess indicates the job could not be run after the message was parsed.
// The message should be left on the queue for redelivery.
type ErrProcess struct {
	JobID     string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process job"
	}
	return "process job: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never be processed
// and should be dropped.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingJobID
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
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
	msg.JobID = strings.TrimSpace(msg.JobID)
	if msg.JobID == "" {
		return msg, meta, ErrMissingJobID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Runner starts queued jobs.
type Runner interface {
	Start(ctx context.Context, jobID string) (*jobs.Run, error)
}

// Result describes what handling a message did.
type Result struct {
	JobID  string
	Status jobs.Status
	// Skipped is set when the job was no longer queued, which happens when a
	// message is delivered more than once.
	Skipped bool
}

// HandleMessage runs the job named by msg to a terminal state. A job that
// fails is still a handled message; only failures to run it at all are
// returned as ErrProcess.
func HandleMessage(ctx context.Context, runner Runner, msg queue.Message) (Result, error) {
	res := Result{JobID: msg.JobID}
	if runner == nil {
		return res, ErrProcess{JobID: msg.JobID, RequestID: msg.RequestID, Err: errors.New("job runner not configured")}
	}
	if msg.JobID == "" {
		return res, ErrMissingJobID{RequestID: msg.RequestID}
	}

	ctx = jobs.WithRequestID(ctx, msg.RequestID)
	run, err := runner.Start(ctx, msg.JobID)
	switch {
	case errors.Is(err, jobs.ErrNotQueued), errors.Is(err, jobs.ErrAlreadyRunning):
		res.Skipped = true
		return res, nil
	case errors.Is(err, jobs.ErrNotFound):
		return res, ErrMissingJobID{RequestID: msg.RequestID}
	case err != nil:
		return res, ErrProcess{JobID: msg.JobID, RequestID: msg.RequestID, Err: err}
	}

	// Shutdown cancels the run itself; waiting past ctx lets the final
	// state be recorded before the message is acknowledged.
	job, _ := run.Wait(context.WithoutCancel(ctx))
	res.Status = job.Status
	return res, nil
}
