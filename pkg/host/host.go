// Package host wires the Job Queue to the Evaluation Orchestrator: it
// subscribes to queue lifecycle events and, for every job the queue admits
// to running, drives it through the Orchestrator and reports the outcome
// back to the queue.
//
// This is the in-process replacement for the teacher's worker-node gRPC
// heartbeat/sync loop (pkg/worker, dropped — see DESIGN.md): there is no
// second node to dispatch work to, so "dispatch" collapses to subscribing
// to the same broker the Job Queue already publishes on.
package host

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/judgehost/pkg/events"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/orchestrator"
	"github.com/cuemby/judgehost/pkg/queue"
)

// Host drives queued jobs to completion by running each one through an
// Orchestrator as soon as the Queue admits it, then reports the result
// back to the Queue.
type Host struct {
	queue        *queue.Queue
	orchestrator *orchestrator.Orchestrator
	broker       *events.Broker
	logger       zerolog.Logger

	sub    events.Subscriber
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Host. Call Start to begin consuming EventJobStarted.
func New(q *queue.Queue, o *orchestrator.Orchestrator, broker *events.Broker) *Host {
	return &Host{
		queue:        q,
		orchestrator: o,
		broker:       broker,
		logger:       log.WithComponent("host"),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the dispatch loop in the background.
func (h *Host) Start() {
	h.sub = h.broker.Subscribe()
	h.wg.Add(1)
	go h.run()
}

// Stop unsubscribes from the broker and waits until every job this Host
// itself kicked off has finished its evaluation and been marked
// Complete/Fail in the queue.
func (h *Host) Stop() {
	close(h.stopCh)
	h.broker.Unsubscribe(h.sub)
	h.wg.Wait()
}

func (h *Host) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			return
		case ev, ok := <-h.sub:
			if !ok {
				return
			}
			if ev.Type != events.EventJobStarted {
				continue
			}
			jobID := ev.Metadata["job_id"]
			job, err := h.queue.Get(jobID)
			if err != nil {
				h.logger.Error().Err(err).Str("job_id", jobID).Msg("started job vanished from queue")
				continue
			}
			h.wg.Add(1)
			go h.execute(job.JobID)
		}
	}
}

func (h *Host) execute(jobID string) {
	defer h.wg.Done()

	job, err := h.queue.Get(jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("job disappeared before execution")
		return
	}

	eval, err := h.orchestrator.Run(context.Background(), job)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("evaluation failed before producing a result")
		_ = h.queue.Fail(jobID, err)
		return
	}
	_ = h.queue.Complete(jobID, eval)
}
