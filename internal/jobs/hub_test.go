package jobs

import (
	"context"
	"testing"
)

func TestHubDeliversToJobSubscribers(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe("job-1")
	other := hub.Subscribe("job-2")
	defer other.Close()

	_ = hub.Observe(context.Background(), Event{JobID: "job-1", StageID: StageUpload})
	select {
	case ev := <-a.C:
		if ev.StageID != StageUpload {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("expected event")
	}
	select {
	case ev := <-other.C:
		t.Fatalf("event leaked to other job: %+v", ev)
	default:
	}

	a.Close()
	a.Close()
	if n := hub.Subscribers("job-1"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
	if _, ok := <-a.C; ok {
		t.Fatalf("expected closed channel")
	}
	_ = hub.Observe(context.Background(), Event{JobID: "job-1"})
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("job-1")
	defer sub.Close()

	for i := 0; i < 3; i++ {
		if err := hub.Observe(context.Background(), Event{JobID: "job-1", StageIndex: i}); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	if sub.Missed() != 2 {
		t.Fatalf("expected 2 missed, got %d", sub.Missed())
	}
	ev := <-sub.C
	if ev.StageIndex != 0 {
		t.Fatalf("expected first event, got %+v", ev)
	}
}
