package jobs

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound           = errors.New("job not found")
	ErrAlreadyRunning     = errors.New("job already running")
	ErrNotQueued          = errors.New("job is not queued")
	ErrNotCompleted       = errors.New("job not completed")
	ErrNotCancellable     = errors.New("job cannot be cancelled from this process")
	ErrShuttingDown       = errors.New("orchestrator is shutting down")
	ErrPollBudgetExceeded = errors.New("remote job did not finish within the polling budget")
	ErrRemoteJobFailed    = errors.New("remote job failed")
	ErrUnsupportedFile    = errors.New("unsupported drawing file")
	ErrNoOutput           = errors.New("job has no downloadable output")
)

// DetailCancelled is the stage detail recorded when a run is cancelled.
const DetailCancelled = "cancelled"

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
