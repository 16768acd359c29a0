package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/eventphoto/internal/engineerr"
)

// PhotoStatus enumerates the Photo lifecycle states.
type PhotoStatus string

const (
	PhotoPending    PhotoStatus = "pending"
	PhotoProcessing PhotoStatus = "processing"
	PhotoCompleted  PhotoStatus = "completed"
	PhotoError      PhotoStatus = "error"
	PhotoNoFaces    PhotoStatus = "no_faces"
)

// Photo is one ingested source file.
type Photo struct {
	ID            int64
	FileHash      string
	OriginalPath  string
	ProcessedPath sql.NullString
	ThumbnailPath sql.NullString
	Status        PhotoStatus
	FaceCount     sql.NullInt64
	CreatedAt     time.Time
	ProcessedAt   sql.NullTime
}

// PhotoExists reports whether a Photo with the given content hash already exists.
func (s *Store) PhotoExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM photos WHERE file_hash = ?)", hash).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("%w: checking photo existence: %v", engineerr.ErrStoreFailed, err)
	}
	return exists, nil
}

// CreatePhoto inserts a new pending Photo. Returns ErrDuplicateHash if the
// hash already exists.
func (s *Store) CreatePhoto(ctx context.Context, hash, originalPath string) (int64, error) {
	var id int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO photos (file_hash, original_path, status, created_at) VALUES (?, ?, ?, ?)",
			hash, originalPath, PhotoPending, nowUnix())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, fmt.Errorf("%w: %s", engineerr.ErrDuplicateHash, hash)
		}
		return 0, fmt.Errorf("%w: creating photo: %v", engineerr.ErrStoreFailed, err)
	}
	return id, nil
}

// ClaimPending atomically flips up to limit pending Photos to processing
// and returns them, so two workers never claim the same Photo.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]Photo, error) {
	var photos []Photo
	err := withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx,
			"SELECT id, file_hash, original_path, created_at FROM photos WHERE status = ? ORDER BY id LIMIT ?",
			PhotoPending, limit)
		if err != nil {
			return err
		}
		var claimed []Photo
		for rows.Next() {
			var p Photo
			var createdAt int64
			if err := rows.Scan(&p.ID, &p.FileHash, &p.OriginalPath, &createdAt); err != nil {
				rows.Close()
				return err
			}
			p.CreatedAt = time.Unix(createdAt, 0)
			p.Status = PhotoProcessing
			claimed = append(claimed, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, p := range claimed {
			if _, err := tx.ExecContext(ctx, "UPDATE photos SET status = ? WHERE id = ? AND status = ?",
				PhotoProcessing, p.ID, PhotoPending); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		photos = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: claiming pending photos: %v", engineerr.ErrStoreFailed, err)
	}
	return photos, nil
}

// SetProcessing marks a single Photo as processing (called by a worker when it starts on the Photo).
func (s *Store) SetProcessing(ctx context.Context, photoID int64) error {
	return s.exec(ctx, "UPDATE photos SET status = ? WHERE id = ?", PhotoProcessing, photoID)
}

// SetCompleted marks a Photo completed (or no_faces if faceCount is 0),
// recording its processed/thumbnail paths and face count.
func (s *Store) SetCompleted(ctx context.Context, photoID int64, processedPath, thumbPath string, faceCount int) error {
	status := PhotoCompleted
	if faceCount == 0 {
		status = PhotoNoFaces
	}
	return s.exec(ctx,
		"UPDATE photos SET status = ?, processed_path = ?, thumbnail_path = ?, face_count = ?, processed_at = ? WHERE id = ?",
		status, processedPath, thumbPath, faceCount, nowUnix(), photoID)
}

// SetError marks a Photo as errored.
func (s *Store) SetError(ctx context.Context, photoID int64) error {
	return s.exec(ctx, "UPDATE photos SET status = ?, processed_at = ? WHERE id = ?", PhotoError, nowUnix(), photoID)
}

// RequeuePhoto is the explicit operator reset named in the Photo lifecycle
// invariant: it forces a terminal-state Photo back to pending.
func (s *Store) RequeuePhoto(ctx context.Context, photoID int64) error {
	return s.exec(ctx,
		"UPDATE photos SET status = ?, processed_path = NULL, thumbnail_path = NULL, face_count = NULL, processed_at = NULL WHERE id = ?",
		PhotoPending, photoID)
}

// ResetStuckProcessing resets Photos stuck in `processing` longer than
// olderThan back to pending, for Supervisor's periodic sweep.
func (s *Store) ResetStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	var affected int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"UPDATE photos SET status = ? WHERE status = ? AND created_at < ?",
			PhotoPending, PhotoProcessing, time.Now().Add(-olderThan).Unix())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: resetting stuck processing photos: %v", engineerr.ErrStoreFailed, err)
	}
	return affected, nil
}

// PendingPhotos returns every pending Photo, for Supervisor's startup re-enqueue.
func (s *Store) PendingPhotos(ctx context.Context) ([]Photo, error) {
	var photos []Photo
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT id, file_hash, original_path, created_at FROM photos WHERE status = ? ORDER BY id", PhotoPending)
		if err != nil {
			return err
		}
		defer rows.Close()
		photos = nil
		for rows.Next() {
			var p Photo
			var createdAt int64
			if err := rows.Scan(&p.ID, &p.FileHash, &p.OriginalPath, &createdAt); err != nil {
				return err
			}
			p.CreatedAt = time.Unix(createdAt, 0)
			p.Status = PhotoPending
			photos = append(photos, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing pending photos: %v", engineerr.ErrStoreFailed, err)
	}
	return photos, nil
}

// ProcessingPhotoIDs returns the IDs of every Photo currently in `processing`,
// the entry point to crash recovery.
func (s *Store) ProcessingPhotoIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT id FROM photos WHERE status = ?", PhotoProcessing)
		if err != nil {
			return err
		}
		defer rows.Close()
		ids = nil
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing processing photos: %v", engineerr.ErrStoreFailed, err)
	}
	return ids, nil
}

// PhotoCounts returns the number of Photos in each status, for stats reporting.
func (s *Store) PhotoCounts(ctx context.Context) (map[PhotoStatus]int64, error) {
	counts := make(map[PhotoStatus]int64)
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM photos GROUP BY status")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var status PhotoStatus
			var count int64
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			counts[status] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: counting photos: %v", engineerr.ErrStoreFailed, err)
	}
	return counts, nil
}

// exec runs a simple statement under the retry policy, wrapping failures as ErrStoreFailed.
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", engineerr.ErrStoreFailed, err)
	}
	return nil
}

// isUniqueConstraintErr recognizes the go-sqlite3 driver's unique-constraint
// failure. Its error type does not expose a distinguishable sentinel across
// driver versions, so this matches on the driver's own message text.
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
