// Package recognition decides when a camera frame is sent to the face
// recognition service and applies the answers to the identity store.
//
// At most one request is pending at a time. A level change or an unstable
// face box supersedes the pending request; a NEAR follow-up is skipped
// while one is pending. Entering NONE clears identity immediately and
// advances an epoch. Requests still unanswered at that moment are owed a
// response; those responses are discarded when they arrive, so they cannot
// bring the old identity back after the face returns.
package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/members"
	"github.com/teslashibe/go-kiosk/pkg/protocol"
	"github.com/teslashibe/go-kiosk/pkg/transport"
)

// Transport is the connection to the recognition service.
type Transport interface {
	Send(v any) bool
	IsOpen() bool
	OnMessage(fn transport.Handler) *transport.Subscription
	OffMessage(sub *transport.Subscription)
}

// Snapshotter returns the latest camera frame as JPEG.
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

// MemberService is the member API.
type MemberService interface {
	GetMember(ctx context.Context, id string) (*members.Member, error)
	GetMembers(ctx context.Context) ([]members.Member, error)
	CreateMember(ctx context.Context, req members.LoginRequest) (*members.Member, error)
}

// Identity is the identity store as seen by the orchestrator.
type Identity interface {
	CurrentID() string
	SetCurrent(m *members.Member)
	SetMembers(list []members.Member)
}

// request is one dispatched recognition request.
type request struct {
	id     string
	level  facetrack.Level
	uuid   string
	sentAt time.Time
	timer  *time.Timer
}

// staleResponse is an answer owed for a request sent before the face left.
type staleResponse struct {
	epoch  uint64
	sentAt time.Time
}

// Status describes the orchestrator for diagnostics.
type Status struct {
	Level        facetrack.Level `json:"level"`
	Pending      bool            `json:"pending"`
	PendingID    string          `json:"pending_id,omitempty"`
	PendingSince time.Time       `json:"pending_since,omitempty"`
	Sent         uint64          `json:"sent"`
	Responses    uint64          `json:"responses"`
	Timeouts     uint64          `json:"timeouts"`
}

// Orchestrator sends recognition requests in response to face level
// changes and applies the answers.
type Orchestrator struct {
	config    *Config
	logger    *slog.Logger
	transport Transport
	camera    Snapshotter
	members   MemberService
	identity  Identity
	recorder  Recorder

	sub *transport.Subscription

	mu       sync.Mutex
	level    facetrack.Level
	pending  *request
	followUp *time.Timer
	epoch    uint64
	closed   bool

	// inflight holds send times of unanswered requests in this epoch,
	// oldest first. stale holds the ones carried over from earlier epochs.
	inflight []time.Time
	stale    []staleResponse

	sent, responses, timeouts uint64
}

// New creates an orchestrator and registers it for transport messages.
func New(t Transport, camera Snapshotter, ms MemberService, id Identity, opts ...Option) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	o := &Orchestrator{
		config:    cfg,
		logger:    cfg.Logger.With("component", "recognition.orchestrator"),
		transport: t,
		camera:    camera,
		members:   ms,
		identity:  id,
		level:     facetrack.LevelNone,
	}
	o.sub = t.OnMessage(o.HandleMessage)
	return o
}

// SetRecorder sets an optional transition recorder.
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.mu.Lock()
	o.recorder = r
	o.mu.Unlock()
}

// HandleLevelChange reacts to a face level transition.
func (o *Orchestrator) HandleLevelChange(level facetrack.Level) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.level = level
	o.stopFollowUpLocked()

	switch level {
	case facetrack.LevelNone:
		for _, sentAt := range o.inflight {
			o.stale = append(o.stale, staleResponse{epoch: o.epoch, sentAt: sentAt})
		}
		o.inflight = nil
		o.epoch++
		o.clearPendingLocked()
		o.identity.SetCurrent(nil)
		o.recordLocked(Transition{Kind: KindCleared, Level: level})
	case facetrack.LevelNear, facetrack.LevelClose:
		o.dispatchLocked(level, "")
	}
}

// HandleUnstable sends a fresh request when the face box jumped. The
// current member id travels along as a hint.
func (o *Orchestrator) HandleUnstable(level facetrack.Level) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || level == facetrack.LevelNone {
		return
	}
	o.dispatchLocked(level, o.identity.CurrentID())
}

// dispatchLocked snapshots the camera and sends one request, replacing
// any pending one. Nothing is sent or queued while the transport is down.
func (o *Orchestrator) dispatchLocked(level facetrack.Level, memberID string) {
	if !o.transport.IsOpen() {
		o.logger.Debug("transport not open, request skipped", "level", level)
		return
	}

	jpeg, err := o.camera.Snapshot()
	if err != nil {
		o.logger.Warn("snapshot failed", "error", err)
		return
	}

	o.clearPendingLocked()

	// The timeout is armed before sending so a failed send is retried.
	req := &request{
		id:     uuid.NewString(),
		level:  level,
		uuid:   memberID,
		sentAt: time.Now(),
	}
	o.pending = req
	req.timer = time.AfterFunc(o.config.ResponseTimeout, func() { o.onTimeout(req) })

	msg := protocol.NewRecognitionRequest(base64.StdEncoding.EncodeToString(jpeg), int(level), memberID)
	if !o.transport.Send(msg) {
		o.logger.Warn("recognition request not sent, will retry", "request_id", req.id, "level", level)
		return
	}

	o.sent++
	o.inflight = append(o.inflight, req.sentAt)

	o.logger.Debug("recognition request sent",
		"request_id", req.id,
		"level", level,
		"uuid", memberID,
		"bytes", len(jpeg),
	)
}

// onTimeout resends the same level and hint when req is still pending.
func (o *Orchestrator) onTimeout(req *request) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.pending != req {
		return
	}

	o.timeouts++
	o.pending = nil
	o.logger.Warn("recognition response timed out, resending",
		"request_id", req.id,
		"level", req.level,
		"waited", time.Since(req.sentAt),
	)
	o.dispatchLocked(req.level, req.uuid)
}

// scheduleFollowUpLocked arms the NEAR follow-up.
func (o *Orchestrator) scheduleFollowUpLocked() {
	o.stopFollowUpLocked()

	var t *time.Timer
	t = time.AfterFunc(o.config.FollowUpDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		if o.followUp != t {
			return
		}
		o.followUp = nil
		if o.closed || o.level != facetrack.LevelNear || o.pending != nil {
			return
		}
		o.dispatchLocked(facetrack.LevelNear, "")
	})
	o.followUp = t
}

func (o *Orchestrator) stopFollowUpLocked() {
	if o.followUp != nil {
		o.followUp.Stop()
		o.followUp = nil
	}
}

func (o *Orchestrator) clearPendingLocked() {
	if o.pending != nil {
		o.pending.timer.Stop()
		o.pending = nil
	}
}

// HandleMessage processes one frame from the recognition service. It runs
// on the transport's read goroutine.
func (o *Orchestrator) HandleMessage(raw json.RawMessage) {
	resp, err := protocol.ParseRecognitionResponse(raw)
	if err != nil {
		o.logger.Warn("unexpected message from recognition service", "error", err)
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.expireLocked(time.Now())
	if len(o.stale) > 0 {
		s := o.stale[0]
		o.stale = o.stale[1:]
		o.responses++
		o.mu.Unlock()
		o.logger.Debug("response to a request from before the face left, discarded",
			"epoch", s.epoch,
			"age", time.Since(s.sentAt),
		)
		return
	}
	if len(o.inflight) > 0 {
		o.inflight = o.inflight[1:]
	}
	answered := o.pending
	o.clearPendingLocked()
	o.responses++
	epoch := o.epoch
	level := o.level
	o.mu.Unlock()

	log := o.logger
	if answered != nil {
		log = log.With("request_id", answered.id, "latency", time.Since(answered.sentAt))
	}

	if level == facetrack.LevelNone {
		log.Debug("response after face left, ignored")
		return
	}
	if resp.IsError() {
		log.Warn("recognition service error", "message", resp.Message)
	}

	m, apply := o.resolve(resp, log)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.epoch != epoch || o.level == facetrack.LevelNone {
		log.Debug("stale response dropped")
		return
	}
	if apply {
		previous := o.identity.CurrentID()
		o.identity.SetCurrent(m)

		t := Transition{Kind: KindRecognized, Level: o.level, IsNew: resp.IsNew}
		if answered != nil {
			t.RequestID = answered.id
		}
		if m != nil {
			t.MemberID = m.ID
			o.recordLocked(t)
		} else if previous != "" {
			t.Kind = KindUnrecognized
			o.recordLocked(t)
		}
	}

	if answered != nil && o.level == facetrack.LevelNear {
		o.scheduleFollowUpLocked()
	}
}

// expireLocked forgets owed responses older than the response timeout. The
// service may never answer them.
func (o *Orchestrator) expireLocked(now time.Time) {
	cutoff := now.Add(-o.config.ResponseTimeout)

	i := 0
	for i < len(o.stale) && o.stale[i].sentAt.Before(cutoff) {
		i++
	}
	o.stale = o.stale[i:]

	j := 0
	for j < len(o.inflight) && o.inflight[j].Before(cutoff) {
		j++
	}
	o.inflight = o.inflight[j:]
}

// Level returns the level the orchestrator last saw.
func (o *Orchestrator) Level() facetrack.Level {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level
}

// Status returns a diagnostic snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Status{
		Level:     o.level,
		Sent:      o.sent,
		Responses: o.responses,
		Timeouts:  o.timeouts,
	}
	if o.pending != nil {
		s.Pending = true
		s.PendingID = o.pending.id
		s.PendingSince = o.pending.sentAt
	}
	return s
}

// Close stops all timers, clears pending state and deregisters from the
// transport. It is safe to call more than once.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.clearPendingLocked()
	o.stopFollowUpLocked()
	o.inflight, o.stale = nil, nil
	o.mu.Unlock()

	o.transport.OffMessage(o.sub)
	return nil
}
