package simulated

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tga-backend/internal/automation"
	"tga-backend/internal/project"
	"tga-backend/internal/shared/storage/object/local"
)

func TestWorkItemSucceedsAfterPolls(t *testing.T) {
	ctx := context.Background()
	b := New(local.New(t.TempDir()), "", 2)

	require.NoError(t, b.EnsureBucket(ctx))
	in, err := b.Upload(ctx, "j1-plan.dwg", strings.NewReader("AC1032"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, in.Size)

	id, err := b.Submit(ctx, automation.WorkItem{
		JobID:      "j1",
		Input:      in,
		OutputName: "j1-result.zip",
		Project:    project.Config{ProjectType: project.TypeOffice, TotalArea: 100, Floors: 1},
	})
	require.NoError(t, err)

	var states []automation.State
	for i := 0; i < 4; i++ {
		st, err := b.Status(ctx, id)
		require.NoError(t, err)
		states = append(states, st.State)
	}
	assert.Equal(t, []automation.State{
		automation.StateInProgress,
		automation.StateInProgress,
		automation.StateSuccess,
		automation.StateSuccess,
	}, states)

	rc, err := b.Download(ctx, "j1-result.zip")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "manifest.json", zr.File[0].Name)
}

func TestWorkItemFailure(t *testing.T) {
	ctx := context.Background()
	b := New(local.New(t.TempDir()), "bucket", 0)
	b.FailWith = "failedInstructions"

	id, err := b.Submit(ctx, automation.WorkItem{JobID: "j1", Input: automation.Object{ObjectKey: "in.dwg"}, OutputName: "out.zip"})
	require.NoError(t, err)

	st, err := b.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, automation.StateFailed, st.State)
	assert.Equal(t, "failedInstructions", st.Detail)

	_, err = b.Download(ctx, "out.zip")
	assert.True(t, errors.Is(err, automation.ErrNotFound))
}

func TestStatusUnknownID(t *testing.T) {
	b := New(local.New(t.TempDir()), "", 0)
	_, err := b.Status(context.Background(), "missing")
	assert.True(t, errors.Is(err, automation.ErrNotFound))
}
