package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/eventphoto/internal/clusterer"
	"github.com/kozaktomas/eventphoto/internal/engineerr"
	"github.com/rs/zerolog"
)

// RecoveryReport summarizes what Recover changed, for the startup log line.
type RecoveryReport struct {
	PhotosRequeued   int
	OrphanFacesFound int
	PersonsUpdated   int
	PersonsDeleted   int
}

// Recover implements the crash-recovery procedure: every Photo left in
// `processing` by a prior run is an interrupted photo group. Its Faces are
// orphaned, every Person those Faces touched has its centroid recomputed
// from its remaining Faces (or is deleted if none remain), and the Photo itself goes
// back to pending. The whole thing runs inside one transaction per photo
// group, so a second crash mid-recovery leaves the store in a state that
// is safe to recover again.
func Recover(ctx context.Context, s *Store, log zerolog.Logger) (RecoveryReport, error) {
	var report RecoveryReport

	ids, err := s.ProcessingPhotoIDs(ctx)
	if err != nil {
		return report, err
	}
	if len(ids) == 0 {
		return report, nil
	}

	for _, photoID := range ids {
		if err := recoverOnePhoto(ctx, s, photoID, &report); err != nil {
			return report, fmt.Errorf("%w: recovering photo %d: %v", engineerr.ErrConsistency, photoID, err)
		}
	}

	log.Info().
		Int("photos_requeued", report.PhotosRequeued).
		Int("orphan_faces", report.OrphanFacesFound).
		Int("persons_updated", report.PersonsUpdated).
		Int("persons_deleted", report.PersonsDeleted).
		Msg("crash recovery complete")

	return report, nil
}

func recoverOnePhoto(ctx context.Context, s *Store, photoID int64, report *RecoveryReport) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		touchedPersons, err := queryTouchedPersons(ctx, tx, photoID)
		if err != nil {
			return err
		}

		faceCount, err := execAffected(ctx, tx, "DELETE FROM faces WHERE photo_id = ?", photoID)
		if err != nil {
			return err
		}

		for _, personID := range touchedPersons {
			surviving, err := queryPersonEmbeddings(ctx, tx, personID)
			if err != nil {
				return err
			}
			if len(surviving) == 0 {
				if _, err := tx.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", personID); err != nil {
					return err
				}
				report.PersonsDeleted++
				continue
			}
			centroid := recomputeCentroid(surviving)
			if _, err := tx.ExecContext(ctx, "UPDATE persons SET centroid = ?, face_count = ? WHERE id = ?",
				encodeEmbedding(centroid), len(surviving), personID); err != nil {
				return err
			}
			report.PersonsUpdated++
		}

		if _, err := tx.ExecContext(ctx, "UPDATE photos SET status = ? WHERE id = ?", PhotoPending, photoID); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		report.PhotosRequeued++
		report.OrphanFacesFound += faceCount
		return nil
	})
}

func queryTouchedPersons(ctx context.Context, tx *sql.Tx, photoID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT DISTINCT person_id FROM faces WHERE photo_id = ? AND person_id IS NOT NULL", photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryPersonEmbeddings(ctx context.Context, tx *sql.Tx, personID int64) ([][]float32, error) {
	rows, err := tx.QueryContext(ctx, "SELECT embedding FROM faces WHERE person_id = ?", personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]float32
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		out = append(out, decodeEmbedding(blob))
	}
	return out, rows.Err()
}

func execAffected(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// recomputeCentroid is the mean-of-embeddings, renormalized, that the
// recovery procedure uses to rebuild a Person's centroid from its
// surviving Faces.
func recomputeCentroid(embeddings [][]float32) []float32 {
	dim := len(embeddings[0])
	sum := make([]float32, dim)
	for _, e := range embeddings {
		for i, v := range e {
			sum[i] += v
		}
	}
	for i := range sum {
		sum[i] /= float32(len(embeddings))
	}
	return clusterer.Normalize(sum)
}
