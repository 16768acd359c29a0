package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/eventphoto/internal/engineerr"
)

// UploadStatus enumerates the UploadJob lifecycle states.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadFailed    UploadStatus = "failed"
)

// UploadJob is one routed file path queued for the remote mirror.
type UploadJob struct {
	ID         int64
	PhotoID    int64
	LocalPath  string
	RelativeTo string
	Status     UploadStatus
	RetryCount int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EnqueueUpload queues one routed local path for remote upload, relative to
// the event root so the RemoteStore can reconstruct folder structure.
func (s *Store) EnqueueUpload(ctx context.Context, photoID int64, localPath, relativeTo string) (int64, error) {
	var id int64
	now := nowUnix()
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO upload_queue (photo_id, local_path, relative_to, status, retry_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, ?, ?)`,
			photoID, localPath, relativeTo, UploadPending, now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: enqueuing upload: %v", engineerr.ErrStoreFailed, err)
	}
	return id, nil
}

// PendingUploads returns up to limit uploads in `pending` status, oldest first.
func (s *Store) PendingUploads(ctx context.Context, limit int) ([]UploadJob, error) {
	return s.queryUploads(ctx, "SELECT id, photo_id, local_path, relative_to, status, retry_count, last_error, created_at, updated_at FROM upload_queue WHERE status = ? ORDER BY id LIMIT ?", UploadPending, limit)
}

// FailedUploads returns every upload in `failed` status; the upload queue
// picks its retry-eligible jobs from this list.
func (s *Store) FailedUploads(ctx context.Context) ([]UploadJob, error) {
	return s.queryUploads(ctx, "SELECT id, photo_id, local_path, relative_to, status, retry_count, last_error, created_at, updated_at FROM upload_queue WHERE status = ? ORDER BY id", UploadFailed)
}

func (s *Store) queryUploads(ctx context.Context, query string, args ...any) ([]UploadJob, error) {
	var jobs []UploadJob
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		jobs = nil
		for rows.Next() {
			var j UploadJob
			var lastError *string
			var createdAt, updatedAt int64
			if err := rows.Scan(&j.ID, &j.PhotoID, &j.LocalPath, &j.RelativeTo, &j.Status, &j.RetryCount,
				&lastError, &createdAt, &updatedAt); err != nil {
				return err
			}
			if lastError != nil {
				j.LastError = *lastError
			}
			j.CreatedAt = time.Unix(createdAt, 0)
			j.UpdatedAt = time.Unix(updatedAt, 0)
			jobs = append(jobs, j)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing uploads: %v", engineerr.ErrStoreFailed, err)
	}
	return jobs, nil
}

// UpdateUpload transitions an UploadJob's status, bumping its retry count
// and recording the failure reason when status is UploadFailed.
func (s *Store) UpdateUpload(ctx context.Context, jobID int64, status UploadStatus, lastError string) error {
	if status == UploadFailed {
		return s.exec(ctx,
			"UPDATE upload_queue SET status = ?, retry_count = retry_count + 1, last_error = ?, updated_at = ? WHERE id = ?",
			status, lastError, nowUnix(), jobID)
	}
	return s.exec(ctx, "UPDATE upload_queue SET status = ?, updated_at = ? WHERE id = ?", status, nowUnix(), jobID)
}

// RewriteUploadPaths replaces oldPrefix with newPrefix in the local path of
// every pending or failed UploadJob whose local path starts with oldPrefix,
// used after an Enrollment-triggered rename moves already-queued files on
// disk. relative_to is left unchanged.
func (s *Store) RewriteUploadPaths(ctx context.Context, oldPrefix, newPrefix string) (int64, error) {
	var affected int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE upload_queue SET local_path = ? || substr(local_path, ?), updated_at = ?
			 WHERE local_path LIKE ? || '%' AND status IN (?, ?)`,
			newPrefix, len(oldPrefix)+1, nowUnix(), oldPrefix, UploadPending, UploadFailed)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: rewriting upload paths: %v", engineerr.ErrStoreFailed, err)
	}
	return affected, nil
}

// ResetStuckUploads resets uploads that have been in `uploading` for at
// least olderThan back to pending; the upload queue calls it at the start of
// each drain and the reset-stuck command calls it on demand.
func (s *Store) ResetStuckUploads(ctx context.Context, olderThan time.Duration) (int64, error) {
	var affected int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"UPDATE upload_queue SET status = ?, updated_at = ? WHERE status = ? AND updated_at <= ?",
			UploadPending, nowUnix(), UploadUploading, time.Now().Add(-olderThan).Unix())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: resetting stuck uploads: %v", engineerr.ErrStoreFailed, err)
	}
	return affected, nil
}

// PendingUploadCount reports the number of uploads in pending or uploading
// status, for the stats command.
func (s *Store) PendingUploadCount(ctx context.Context) (int64, error) {
	var count int64
	err := withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM upload_queue WHERE status IN (?, ?)", UploadPending, UploadUploading).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting pending uploads: %v", engineerr.ErrStoreFailed, err)
	}
	return count, nil
}
