// Package uploadqueue drains the phase-gated upload queue: one best-effort
// replication pass of locally routed files to the remote store per
// UPLOADING turn.
package uploadqueue

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/kozaktomas/eventphoto/internal/remotestore"
	"github.com/rs/zerolog"
)

// Store is the subset of *store.Store the queue needs.
type Store interface {
	PendingUploads(ctx context.Context, limit int) ([]StoreJob, error)
	FailedUploads(ctx context.Context) ([]StoreJob, error)
	UpdateUpload(ctx context.Context, jobID int64, status string, lastError string) error
	ResetStuckUploads(ctx context.Context, olderThan time.Duration) (int64, error)
}

// StoreJob is the store-shaped upload record; defined here (rather than
// imported) so this package stays decoupled from internal/store's
// concrete UploadStatus type.
type StoreJob struct {
	ID         int64
	LocalPath  string
	RelativeTo string
	RetryCount int
}

const (
	statusUploading = "uploading"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Gate is the subset of *phase.Coordinator the queue needs.
type Gate interface {
	ShouldUpload(ctx context.Context, timeout time.Duration) bool
	OnUploadsComplete()
}

// Queue drains pending and retry-eligible failed uploads during each
// UPLOADING turn.
type Queue struct {
	store       Store
	remote      remotestore.RemoteStore
	gate        Gate
	batchSize   int
	maxRetries  int
	baseDelay   time.Duration
	stuckAfter  time.Duration
	log         zerolog.Logger
}

// New constructs a Queue.
func New(store Store, remote remotestore.RemoteStore, gate Gate, batchSize, maxRetries int, baseDelay, stuckAfter time.Duration, log zerolog.Logger) *Queue {
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Queue{
		store: store, remote: remote, gate: gate,
		batchSize: batchSize, maxRetries: maxRetries, baseDelay: baseDelay, stuckAfter: stuckAfter,
		log: log.With().Str("component", "uploadqueue").Logger(),
	}
}

// Run blocks until ctx is canceled, repeatedly waiting for an UPLOADING
// turn and draining it.
func (q *Queue) Run(ctx context.Context) {
	for {
		if !q.gate.ShouldUpload(ctx, 5*time.Second) {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		q.drainOneTurn(ctx)
		q.gate.OnUploadsComplete()
	}
}

// drainOneTurn implements the three-step drain protocol: reset stuck
// entries, repeatedly fetch and upload pending/retry-eligible work until
// nothing is left, then return so the caller can flip back to PROCESSING.
// The same remote client is used for every turn; it is not rebuilt between
// drains.
func (q *Queue) drainOneTurn(ctx context.Context) {
	if _, err := q.store.ResetStuckUploads(ctx, q.stuckAfter); err != nil {
		q.log.Error().Err(err).Msg("resetting stuck uploads")
	}

	for {
		if ctx.Err() != nil {
			return
		}

		pending, err := q.store.PendingUploads(ctx, q.batchSize)
		if err != nil {
			q.log.Error().Err(err).Msg("listing pending uploads")
			return
		}
		failed, err := q.retryEligibleFailed(ctx)
		if err != nil {
			q.log.Error().Err(err).Msg("listing failed uploads")
			return
		}

		work := append(pending, failed...)
		if len(work) == 0 {
			return
		}

		for _, job := range work {
			if ctx.Err() != nil {
				return
			}
			q.uploadOne(ctx, job)
		}
	}
}

func (q *Queue) retryEligibleFailed(ctx context.Context) ([]StoreJob, error) {
	all, err := q.store.FailedUploads(ctx)
	if err != nil {
		return nil, err
	}
	var eligible []StoreJob
	for _, j := range all {
		if j.RetryCount >= q.maxRetries {
			continue
		}
		if _, err := os.Stat(j.LocalPath); errors.Is(err, os.ErrNotExist) {
			continue // missing local file: not retried
		}
		eligible = append(eligible, j)
	}
	return eligible, nil
}

func (q *Queue) uploadOne(ctx context.Context, job StoreJob) {
	log := q.log.With().Int64("job_id", job.ID).Str("path", job.LocalPath).Logger()

	if _, err := os.Stat(job.LocalPath); errors.Is(err, os.ErrNotExist) {
		// Missing-file handling: mark the job failed; retryEligibleFailed
		// skips failed jobs whose local file is missing, so it is not
		// retried against a file that will never reappear.
		if err := q.store.UpdateUpload(ctx, job.ID, statusFailed, "local file no longer exists"); err != nil {
			log.Error().Err(err).Msg("recording missing upload file")
		}
		return
	}

	if job.RetryCount > 0 {
		backoff := q.baseDelay * time.Duration(1<<uint(job.RetryCount))
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	if err := q.store.UpdateUpload(ctx, job.ID, statusUploading, ""); err != nil {
		log.Error().Err(err).Msg("marking upload in progress")
		return
	}

	if err := q.remote.Upload(ctx, job.LocalPath, job.RelativeTo); err != nil {
		log.Error().Err(err).Msg("upload failed")
		if err := q.store.UpdateUpload(ctx, job.ID, statusFailed, err.Error()); err != nil {
			log.Error().Err(err).Msg("recording upload failure")
		}
		return
	}

	if err := q.store.UpdateUpload(ctx, job.ID, statusCompleted, ""); err != nil {
		log.Error().Err(err).Msg("marking upload completed")
	}
}
