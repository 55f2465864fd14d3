package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"tga-backend/internal/shared/util"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Store defines the contract for saving and retrieving binary objects.
type Store interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Kinds of files kept under a job's prefix.
const (
	KindInput  = "input"
	KindOutput = "output"
)

// JobKey returns projects/<jobID>/<kind>/<fileName>, the key of one of a
// job's files.
func JobKey(jobID, kind, fileName string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	if kind != KindInput && kind != KindOutput {
		return "", fmt.Errorf("unknown object kind %q", kind)
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join("projects", jobID, kind, name), nil
}
