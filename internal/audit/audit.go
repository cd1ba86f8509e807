// Package audit records who did what to which template. Recording never
// blocks the caller; events are written by a background worker.
package audit

import (
	"context"
	"sync"
	"time"

	"formbuilder/api/internal/store"
	"go.uber.org/zap"
)

type Event string

const (
	CreateForm              Event = "CreateForm"
	ReadForm                Event = "ReadForm"
	UpdateForm              Event = "UpdateForm"
	PublishForm             Event = "PublishForm"
	DeleteForm              Event = "DeleteForm"
	ChangeFormName          Event = "ChangeFormName"
	ChangeFormPurpose       Event = "ChangeFormPurpose"
	ChangeDeliveryOption    Event = "ChangeDeliveryOption"
	ChangeSecurityAttribute Event = "ChangeSecurityAttribute"
	ChangeClosingDate       Event = "ChangeClosingDate"
	GrantFormAccess         Event = "GrantFormAccess"
	RevokeFormAccess        Event = "RevokeFormAccess"
	AccessDenied            Event = "AccessDenied"
)

// Target names the audited resource. ID is empty for list operations.
type Target struct {
	Type string
	ID   string
}

func Form(id string) Target {
	return Target{Type: "Form", ID: id}
}

// Sink persists audit events.
type Sink interface {
	InsertAuditEvent(ctx context.Context, event store.AuditEvent) error
}

type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan store.AuditEvent
	done   chan struct{}
}

// NewRecorder starts the background writer. A nil sink only logs.
func NewRecorder(sink Sink, logger *zap.Logger, buffer int) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		timeout: 5 * time.Second,
		events:  make(chan store.AuditEvent, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues an event. When the queue is full the event is logged and
// dropped.
func (r *Recorder) Record(actorID string, target Target, event Event, detail string) {
	item := store.AuditEvent{
		ActorID:    actorID,
		TargetType: target.Type,
		TargetID:   target.ID,
		Event:      string(event),
		Detail:     detail,
		CreatedAt:  r.now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("audit event after close", eventFields(item)...)
		return
	}
	select {
	case r.events <- item:
	default:
		r.logger.Error("audit queue full, dropping event", eventFields(item)...)
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for item := range r.events {
		r.logger.Info("audit", eventFields(item)...)
		if r.sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.sink.InsertAuditEvent(ctx, item); err != nil {
			r.logger.Error("audit event write failed", append(eventFields(item), zap.Error(err))...)
		}
		cancel()
	}
}

func eventFields(item store.AuditEvent) []zap.Field {
	return []zap.Field{
		zap.String("actor_id", item.ActorID),
		zap.String("target_type", item.TargetType),
		zap.String("target_id", item.TargetID),
		zap.String("event", item.Event),
		zap.String("detail", item.Detail),
	}
}
