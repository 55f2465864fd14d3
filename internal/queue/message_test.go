package queue

import (
	"strings"
	"testing"
	"time"
)

func TestMessageWireFormat(t *testing.T) {
	payload, err := EncodeMessage(Message{JobID: "job-1", EnqueuedAt: "2026-01-30T22:00:00Z", Version: MessageVersion})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	want := `{"jobId":"job-1","enqueuedAt":"2026-01-30T22:00:00Z","version":1}`
	if string(payload) != want {
		t.Fatalf("payload = %s, want %s", payload, want)
	}
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		jobID   string
		wantErr string
	}{
		{name: "current", payload: `{"jobId":"job-1","requestId":"r","version":1}`, jobID: "job-1"},
		{name: "unversioned", payload: `{"jobId":"job-2"}`, jobID: "job-2"},
		{name: "newer version", payload: `{"jobId":"job-3","version":2}`, wantErr: "unsupported message version 2"},
		{name: "not json", payload: `{bad`, wantErr: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.payload))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.JobID != tt.jobID {
				t.Fatalf("jobId = %q, want %q", msg.JobID, tt.jobID)
			}
		})
	}
}

func TestNewMessageStampsTime(t *testing.T) {
	msg := NewMessage("job-1", "")
	if msg.Version != MessageVersion || msg.JobID != "job-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg.EnqueuedAt); err != nil {
		t.Fatalf("enqueuedAt not RFC3339: %v", err)
	}
}
