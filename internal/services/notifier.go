package services

import (
	"context"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/realtime"
	"github.com/yungbote/scoolish-backend/internal/realtime/bus"
)

// SSEEmitter delivers a message to whoever is subscribed to its channel.
type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}

// BusEmitter publishes through Redis. Every API instance runs a forwarder
// into its own hub, this one included, so a successful publish must not
// also broadcast locally. A failed publish falls back to the local hub.
type BusEmitter struct {
	Bus      bus.Bus
	Fallback *realtime.SSEHub
	Log      *logger.Logger
}

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil {
		return
	}
	if e.Bus != nil {
		err := e.Bus.Publish(ctx, msg)
		if err == nil {
			return
		}
		if e.Log != nil {
			e.Log.Warn("SSE bus publish failed; broadcasting locally", "channel", msg.Channel, "event", msg.Event, "error", err)
		}
	}
	if e.Fallback != nil {
		e.Fallback.Broadcast(msg)
	}
}

// NewSSEEmitter picks the bus emitter when a bus is configured.
func NewSSEEmitter(hub *realtime.SSEHub, b bus.Bus, log *logger.Logger) SSEEmitter {
	if b != nil {
		return &BusEmitter{Bus: b, Fallback: hub, Log: log.With("service", "SSEEmitter")}
	}
	return &HubEmitter{Hub: hub}
}

type JobNotifier interface {
	JobCreated(userID string, job *types.JobRun)
	JobProgress(userID string, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID string, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID string, job *types.JobRun)
}

type jobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

func (n *jobNotifier) send(userID string, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || userID == "" {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{Channel: userID, Event: event, Data: data})
}

func (n *jobNotifier) JobCreated(userID string, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(userID string, job *types.JobRun, stage string, progress int, message string) {
	n.send(userID, realtime.SSEEventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(userID string, job *types.JobRun, stage string, errorMessage string) {
	n.send(userID, realtime.SSEEventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *jobNotifier) JobDone(userID string, job *types.JobRun) {
	n.send(userID, realtime.SSEEventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
	})
}

// ProgressNotifier mirrors progress-row transitions onto the owner's
// channel.
type ProgressNotifier interface {
	ProgressUpdated(userID string, p *types.Progress)
	ProgressCompleted(userID string, p *types.Progress)
	ProgressFailed(userID string, p *types.Progress)
}

type progressNotifier struct {
	emit SSEEmitter
}

func NewProgressNotifier(emit SSEEmitter) ProgressNotifier {
	return &progressNotifier{emit: emit}
}

func (n *progressNotifier) send(userID string, event realtime.SSEEvent, p *types.Progress) {
	if n == nil || n.emit == nil || userID == "" || p == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID,
		Event:   event,
		Data:    ProgressView(p),
	})
}

func (n *progressNotifier) ProgressUpdated(userID string, p *types.Progress) {
	n.send(userID, realtime.SSEEventProgressUpdated, p)
}

func (n *progressNotifier) ProgressCompleted(userID string, p *types.Progress) {
	n.send(userID, realtime.SSEEventProgressCompleted, p)
}

func (n *progressNotifier) ProgressFailed(userID string, p *types.Progress) {
	n.send(userID, realtime.SSEEventProgressFailed, p)
}
