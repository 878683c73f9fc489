package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/user/orderbot/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks the handling of a single inbound message.
type Run struct {
	ID        string
	Message   *types.InboundMessage
	Status    RunStatus
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
	Error     error
	Ctx       context.Context
}

// NewRun creates a Run in the Queued state for the given message.
func NewRun(msg *types.InboundMessage) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Message:   msg,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}
