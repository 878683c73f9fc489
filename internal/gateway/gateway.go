package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/orderbot/internal/types"
)

// Handler processes one inbound message to completion.
type Handler func(ctx context.Context, msg *types.InboundMessage)

// Gateway accepts inbound messages from the channel adapters and hands
// each one to the handler on its own goroutine.
type Gateway struct {
	Queue   *Queue
	handler Handler
}

// New creates a Gateway with the given concurrency limit for simultaneous
// message handling.
func New(handler Handler, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		Queue:   NewQueue(concurrency),
		handler: handler,
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.Queue.Start(ctx)
}

// Stop refuses new messages and waits for the accepted ones to finish.
func (g *Gateway) Stop() {
	g.Queue.Stop()
}

// HandleInbound accepts a message for asynchronous handling.
func (g *Gateway) HandleInbound(_ context.Context, msg *types.InboundMessage) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}
	return g.Queue.Enqueue(NewRun(msg))
}

func (g *Gateway) process(run *Run) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	g.handler(run.Ctx, run.Message)
	slog.Debug("run complete",
		"run_id", run.ID,
		"source", run.Message.Source,
		"queued", run.StartedAt.Sub(run.CreatedAt).Round(time.Millisecond),
		"duration", time.Since(run.StartedAt).Round(time.Millisecond),
	)
	return nil
}
