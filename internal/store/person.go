package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/eventphoto/internal/clusterer"
	"github.com/kozaktomas/eventphoto/internal/engineerr"
)

// Person is one cluster of faces believed to belong to the same individual.
type Person struct {
	ID        int64
	Name      string
	Centroid  []float32
	FaceCount int
	CreatedAt time.Time
}

// AllPersonCentroids satisfies clusterer.PersonStore: it loads every
// Person's centroid for the Clusterer to rebuild its nearest-neighbor index.
func (s *Store) AllPersonCentroids(ctx context.Context) ([]clusterer.Centroid, error) {
	var centroids []clusterer.Centroid
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT id, centroid FROM persons")
		if err != nil {
			return err
		}
		defer rows.Close()
		centroids = nil
		for rows.Next() {
			var id int64
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				return err
			}
			centroids = append(centroids, clusterer.Centroid{PersonID: id, Vector: decodeEmbedding(blob)})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading person centroids: %v", engineerr.ErrStoreFailed, err)
	}
	return centroids, nil
}

// CreatePerson satisfies clusterer.PersonStore: it allocates a new Person
// seeded with a single face's centroid.
func (s *Store) CreatePerson(ctx context.Context, name string, centroid []float32) (int64, error) {
	var id int64
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO persons (name, centroid, face_count, created_at) VALUES (?, ?, 1, ?)",
			name, encodeEmbedding(centroid), nowUnix())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: creating person: %v", engineerr.ErrStoreFailed, err)
	}
	return id, nil
}

// UpdatePersonCentroid satisfies clusterer.PersonStore: it persists a
// recomputed centroid and face count after a new face joins the cluster.
func (s *Store) UpdatePersonCentroid(ctx context.Context, personID int64, centroid []float32, faceCount int) error {
	return s.exec(ctx, "UPDATE persons SET centroid = ?, face_count = ? WHERE id = ?",
		encodeEmbedding(centroid), faceCount, personID)
}

// PersonFaceCount satisfies clusterer.PersonStore.
func (s *Store) PersonFaceCount(ctx context.Context, personID int64) (int, error) {
	var count int
	err := withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT face_count FROM persons WHERE id = ?", personID).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: reading person face count: %v", engineerr.ErrStoreFailed, err)
	}
	return count, nil
}

// NextPersonOrdinal satisfies clusterer.PersonStore: it returns a
// monotonically increasing number used to name freshly discovered Persons
// (Person_001, Person_002, ...), independent of deletions/merges.
func (s *Store) NextPersonOrdinal(ctx context.Context) (int64, error) {
	var next int64
	err := withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO person_ordinals (id, next) VALUES (1, 1) ON CONFLICT(id) DO UPDATE SET next = next + 1"); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, "SELECT next FROM person_ordinals WHERE id = 1").Scan(&next); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("%w: allocating person ordinal: %v", engineerr.ErrStoreFailed, err)
	}
	return next, nil
}

// ReassignFaces satisfies clusterer.PersonStore: used by Merge to move every
// Face pointing at fromPersonID over to toPersonID.
func (s *Store) ReassignFaces(ctx context.Context, fromPersonID, toPersonID int64) error {
	return s.exec(ctx, "UPDATE faces SET person_id = ? WHERE person_id = ?", toPersonID, fromPersonID)
}

// DeletePerson satisfies clusterer.PersonStore: used by Merge to remove the
// source Person once its faces have been reassigned.
func (s *Store) DeletePerson(ctx context.Context, personID int64) error {
	return s.exec(ctx, "DELETE FROM persons WHERE id = ?", personID)
}

// RenamePerson applies an operator- or enrollment-driven rename.
func (s *Store) RenamePerson(ctx context.Context, personID int64, name string) error {
	return s.exec(ctx, "UPDATE persons SET name = ? WHERE id = ?", name, personID)
}

// AllPersons lists every Person, for the stats command.
func (s *Store) AllPersons(ctx context.Context) ([]Person, error) {
	var persons []Person
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT id, name, centroid, face_count, created_at FROM persons ORDER BY id")
		if err != nil {
			return err
		}
		defer rows.Close()
		persons = nil
		for rows.Next() {
			var p Person
			var blob []byte
			var createdAt int64
			if err := rows.Scan(&p.ID, &p.Name, &blob, &p.FaceCount, &createdAt); err != nil {
				return err
			}
			p.Centroid = decodeEmbedding(blob)
			p.CreatedAt = time.Unix(createdAt, 0)
			persons = append(persons, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing persons: %v", engineerr.ErrStoreFailed, err)
	}
	return persons, nil
}

// PersonName resolves a Person ID to its current folder-safe name, the
// narrow read the Router needs without depending on the full Person type.
func (s *Store) PersonName(ctx context.Context, personID int64) (string, error) {
	var name string
	err := withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT name FROM persons WHERE id = ?", personID).Scan(&name)
	})
	if err != nil {
		return "", fmt.Errorf("%w: reading person name: %v", engineerr.ErrStoreFailed, err)
	}
	return name, nil
}

// PersonByID fetches a single Person.
func (s *Store) PersonByID(ctx context.Context, personID int64) (Person, error) {
	var p Person
	var blob []byte
	var createdAt int64
	err := withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT id, name, centroid, face_count, created_at FROM persons WHERE id = ?", personID).
			Scan(&p.ID, &p.Name, &blob, &p.FaceCount, &createdAt)
	})
	if err != nil {
		return Person{}, fmt.Errorf("%w: reading person: %v", engineerr.ErrStoreFailed, err)
	}
	p.Centroid = decodeEmbedding(blob)
	p.CreatedAt = time.Unix(createdAt, 0)
	return p, nil
}
