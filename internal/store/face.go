package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/eventphoto/internal/engineerr"
)

// Face is one detected face within a Photo, optionally assigned to a Person.
type Face struct {
	ID         int64
	PhotoID    int64
	PersonID   *int64
	BBoxX      float64
	BBoxY      float64
	BBoxWidth  float64
	BBoxHeight float64
	Embedding  []float32
	Confidence float64
	CreatedAt  time.Time
}

// CreateFace inserts a detected face, initially unassigned to any Person.
func (s *Store) CreateFace(ctx context.Context, photoID int64, bboxX, bboxY, bboxW, bboxH float64, embedding []float32, confidence float64) (int64, error) {
	var id int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO faces (photo_id, bbox_x, bbox_y, bbox_w, bbox_h, embedding, confidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			photoID, bboxX, bboxY, bboxW, bboxH, encodeEmbedding(embedding), confidence, nowUnix())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: creating face: %v", engineerr.ErrStoreFailed, err)
	}
	return id, nil
}

// AssignFace sets a Face's Person assignment, or clears it if personID is nil.
func (s *Store) AssignFace(ctx context.Context, faceID int64, personID *int64) error {
	return s.exec(ctx, "UPDATE faces SET person_id = ? WHERE id = ?", personID, faceID)
}

// FacesOfPhoto returns every Face detected within a Photo.
func (s *Store) FacesOfPhoto(ctx context.Context, photoID int64) ([]Face, error) {
	var faces []Face
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, photo_id, person_id, bbox_x, bbox_y, bbox_w, bbox_h, embedding, confidence, created_at
			 FROM faces WHERE photo_id = ? ORDER BY id`, photoID)
		if err != nil {
			return err
		}
		defer rows.Close()
		faces = nil
		for rows.Next() {
			f, err := scanFace(rows)
			if err != nil {
				return err
			}
			faces = append(faces, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing faces of photo: %v", engineerr.ErrStoreFailed, err)
	}
	return faces, nil
}

// DistinctPersonsOfPhoto returns the distinct, non-null Person IDs assigned
// to faces in a Photo, which the Router uses to decide Solo vs Group routing.
func (s *Store) DistinctPersonsOfPhoto(ctx context.Context, photoID int64) ([]int64, error) {
	var ids []int64
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT DISTINCT person_id FROM faces WHERE photo_id = ? AND person_id IS NOT NULL ORDER BY person_id", photoID)
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
		return nil, fmt.Errorf("%w: listing distinct persons of photo: %v", engineerr.ErrStoreFailed, err)
	}
	return ids, nil
}

type faceScanner interface {
	Scan(dest ...any) error
}

func scanFace(rows faceScanner) (Face, error) {
	var f Face
	var personID *int64
	var embeddingBlob []byte
	var createdAt int64
	if err := rows.Scan(&f.ID, &f.PhotoID, &personID, &f.BBoxX, &f.BBoxY, &f.BBoxWidth, &f.BBoxHeight,
		&embeddingBlob, &f.Confidence, &createdAt); err != nil {
		return Face{}, err
	}
	f.PersonID = personID
	f.Embedding = decodeEmbedding(embeddingBlob)
	f.CreatedAt = time.Unix(createdAt, 0)
	return f, nil
}
