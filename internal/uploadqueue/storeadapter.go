package uploadqueue

import (
	"context"
	"time"

	"github.com/kozaktomas/eventphoto/internal/store"
)

// StoreAdapter wraps *store.Store to satisfy the Queue's narrow Store
// seam, translating store.UploadJob/UploadStatus into this package's own
// job shape so Queue itself has no dependency on internal/store.
type StoreAdapter struct {
	Store *store.Store
}

func (a StoreAdapter) PendingUploads(ctx context.Context, limit int) ([]StoreJob, error) {
	jobs, err := a.Store.PendingUploads(ctx, limit)
	if err != nil {
		return nil, err
	}
	return convertJobs(jobs), nil
}

func (a StoreAdapter) FailedUploads(ctx context.Context) ([]StoreJob, error) {
	jobs, err := a.Store.FailedUploads(ctx)
	if err != nil {
		return nil, err
	}
	return convertJobs(jobs), nil
}

func (a StoreAdapter) UpdateUpload(ctx context.Context, jobID int64, status string, lastError string) error {
	return a.Store.UpdateUpload(ctx, jobID, store.UploadStatus(status), lastError)
}

func (a StoreAdapter) ResetStuckUploads(ctx context.Context, olderThan time.Duration) (int64, error) {
	return a.Store.ResetStuckUploads(ctx, olderThan)
}

func convertJobs(jobs []store.UploadJob) []StoreJob {
	out := make([]StoreJob, len(jobs))
	for i, j := range jobs {
		out[i] = StoreJob{ID: j.ID, LocalPath: j.LocalPath, RelativeTo: j.RelativeTo, RetryCount: j.RetryCount}
	}
	return out
}
