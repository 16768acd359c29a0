// Package phase implements the PhaseCoordinator: it serializes the engine
// between a PROCESSING phase and an UPLOADING phase so the remote store
// and the processor never contend for the same credentials/network state.
package phase

import (
	"context"
	"sync"
	"time"
)

// Phase is one of the two states the coordinator cycles through.
type Phase int

const (
	Processing Phase = iota
	Uploading
)

func (p Phase) String() string {
	if p == Uploading {
		return "uploading"
	}
	return "processing"
}

// Coordinator holds the PROCESSING/UPLOADING state machine. Phase changes
// are published by closing changed and replacing it with a fresh channel,
// so any number of waiters can select on it without a cond-variable
// wakeup-per-waiter goroutine.
type Coordinator struct {
	mu          sync.Mutex
	phase       Phase
	inBatch     int
	batchSize   int
	batchesDone int64
	changed     chan struct{}
}

// New creates a Coordinator starting in PROCESSING, switching to UPLOADING
// once inBatch reaches batchSize.
func New(batchSize int) *Coordinator {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Coordinator{phase: Processing, batchSize: batchSize, changed: make(chan struct{})}
}

// CanProcess blocks until the coordinator is in PROCESSING, or until
// timeout or ctx cancellation, returning false if it never arrives.
func (c *Coordinator) CanProcess(ctx context.Context, timeout time.Duration) bool {
	return c.waitForPhase(ctx, Processing, timeout)
}

// ShouldUpload blocks until the coordinator is in UPLOADING, or until
// timeout or ctx cancellation, returning false if it never arrives.
func (c *Coordinator) ShouldUpload(ctx context.Context, timeout time.Duration) bool {
	return c.waitForPhase(ctx, Uploading, timeout)
}

func (c *Coordinator) waitForPhase(ctx context.Context, want Phase, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		if c.phase == want {
			c.mu.Unlock()
			return true
		}
		wait := c.changed
		c.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-wait:
			timer.Stop()
		case <-timer.C:
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
}

func (c *Coordinator) setPhase(p Phase) {
	c.phase = p
	close(c.changed)
	c.changed = make(chan struct{})
}

// OnProcessed is called by a worker after a photo completes, success or
// error. It is safe to call concurrently; once inBatch reaches batchSize
// it switches the coordinator to UPLOADING.
func (c *Coordinator) OnProcessed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Processing {
		return
	}
	c.inBatch++
	if c.inBatch >= c.batchSize {
		c.setPhase(Uploading)
	}
}

// FlushIfIdle is called by the Supervisor when the job queue is empty and
// no workers are busy; it forces a switch to UPLOADING if a partial batch
// is pending, so small final batches still get uploaded.
func (c *Coordinator) FlushIfIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == Processing && c.inBatch > 0 {
		c.setPhase(Uploading)
	}
}

// OnUploadsComplete is called by the upload queue once a full UPLOADING
// turn has drained. It resets the batch counter and switches back to
// PROCESSING.
func (c *Coordinator) OnUploadsComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inBatch = 0
	c.batchesDone++
	c.setPhase(Processing)
}

// Snapshot reports the current phase and counters, for stats reporting.
func (c *Coordinator) Snapshot() (p Phase, inBatch int, batchesDone int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase, c.inBatch, c.batchesDone
}
