package jobs

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tga-backend/internal/shared/server/middleware"
	"tga-backend/internal/shared/telemetry"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	defaultEventPoll = time.Second
)

// Message types written to event stream clients.
const (
	MessageSnapshot = "snapshot"
	MessageStage    = "stage"
	MessageFinal    = "final"
)

// StreamMessage is one frame of the event stream.
type StreamMessage struct {
	Type  string      `json:"type"`
	Job   *StatusView `json:"job,omitempty"`
	Event *Event      `json:"event,omitempty"`
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originAllowed(h.AllowedOrigins),
	}
}

// originAllowed accepts requests without an Origin header, same-host
// origins and the configured browser origins.
func originAllowed(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

// events streams stage transitions of one job. The first frame is the
// current snapshot; once the job reaches a terminal status a final snapshot
// is written and the connection is closed.
//
// Jobs executing in this process are followed through the hub. Jobs run by
// a worker process are followed by polling the repository, so a stage frame
// is written for every stage status change seen between polls.
func (h *Handler) events(c *gin.Context) {
	id := c.Param("id")
	reqID := middleware.RequestIDFromContext(c)

	// Subscribe before reading the snapshot so no transition falls in between.
	var live <-chan Event
	var sub *Subscription
	if h.Hub != nil {
		sub = h.Hub.Subscribe(id)
		defer sub.Close()
		live = sub.C
	}

	job, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, err)
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("job.events.upgrade_failed", map[string]any{"request_id": reqID, "job_id": id, "err": err})
		return
	}
	defer conn.Close()

	telemetry.Debug("job.events.open", map[string]any{"request_id": reqID, "job_id": id})

	view := NewStatusView(job)
	if job.Status.Terminal() {
		_ = writeFrame(conn, StreamMessage{Type: MessageFinal, Job: &view})
		closeStream(conn)
		return
	}
	if err := writeFrame(conn, StreamMessage{Type: MessageSnapshot, Job: &view}); err != nil {
		return
	}

	seen := stageStatuses(job)

	gone := make(chan struct{})
	go readUntilClosed(conn, gone)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	interval := h.EventPoll
	if interval <= 0 {
		interval = defaultEventPoll
	}
	poll := time.NewTicker(interval)
	defer poll.Stop()

	finish := func() {
		if final, err := h.Svc.Get(c.Request.Context(), id); err == nil {
			fv := NewStatusView(final)
			_ = writeFrame(conn, StreamMessage{Type: MessageFinal, Job: &fv})
		}
		fields := map[string]any{"request_id": reqID, "job_id": id}
		if sub != nil {
			fields["missed"] = sub.Missed()
		}
		telemetry.Debug("job.events.close", fields)
		closeStream(conn)
	}

	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-live:
			if !ok {
				live = nil
				continue
			}
			if ev.Transition && ev.StageIndex >= 0 && ev.StageIndex < len(seen) {
				if seen[ev.StageIndex] == ev.Status && !ev.JobStatus.Terminal() {
					continue
				}
				seen[ev.StageIndex] = ev.Status
			}
			if err := writeFrame(conn, StreamMessage{Type: MessageStage, Event: &ev}); err != nil {
				return
			}
			if ev.JobStatus.Terminal() {
				// Cascaded stage events follow the terminal one; the
				// persisted snapshot already carries them.
				finish()
				return
			}
		case <-poll.C:
			if h.Svc.Orchestrator != nil && h.Svc.Orchestrator.Running(id) && live != nil {
				continue
			}
			latest, err := h.Svc.Get(c.Request.Context(), id)
			if err != nil {
				continue
			}
			for _, ev := range stageChanges(latest, seen) {
				if err := writeFrame(conn, StreamMessage{Type: MessageStage, Event: &ev}); err != nil {
					return
				}
			}
			if latest.Status.Terminal() {
				finish()
				return
			}
		}
	}
}

func stageStatuses(job Job) []StageStatus {
	out := make([]StageStatus, len(job.Stages))
	for i, s := range job.Stages {
		out[i] = s.Status
	}
	return out
}

// stageChanges returns one transition event per stage whose status differs
// from seen, in stage order, and records the new statuses in seen.
func stageChanges(job Job, seen []StageStatus) []Event {
	var out []Event
	done := 0
	for _, s := range job.Stages {
		if s.Status == StageCompleted {
			done++
		}
	}
	fraction := 0.0
	if len(job.Stages) > 0 {
		fraction = float64(done) / float64(len(job.Stages))
	}
	for i, s := range job.Stages {
		if i >= len(seen) || seen[i] == s.Status {
			continue
		}
		seen[i] = s.Status
		out = append(out, Event{
			JobID:      job.ID,
			JobStatus:  job.Status,
			StageIndex: i,
			StageID:    s.ID,
			StageName:  s.Name,
			Status:     s.Status,
			Fraction:   fraction,
			Detail:     s.Detail,
			At:         job.UpdatedAt,
			Transition: true,
		})
	}
	return out
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

func closeStream(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(wsWriteWait))
}

// readUntilClosed drains client frames so control messages are processed and
// signals when the peer goes away.
func readUntilClosed(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
