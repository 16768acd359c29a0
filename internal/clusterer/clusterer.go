// Package clusterer assigns face embeddings to Person clusters by
// incremental nearest-centroid matching, grounded on the corpus's
// cosine-distance face-matching code but adapted from a one-shot SQL
// similarity search to an in-process running-centroid model.
package clusterer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// PersonStore is the narrow slice of Store operations the Clusterer needs.
// It is an explicit interface rather than a dependency on the concrete
// Store so clusterer tests can inject an in-memory fake.
type PersonStore interface {
	AllPersonCentroids(ctx context.Context) ([]Centroid, error)
	CreatePerson(ctx context.Context, name string, centroid []float32) (id int64, err error)
	UpdatePersonCentroid(ctx context.Context, id int64, centroid []float32, faceCount int) error
	PersonFaceCount(ctx context.Context, id int64) (int, error)
	NextPersonOrdinal(ctx context.Context) (int64, error)
	ReassignFaces(ctx context.Context, fromPersonID, toPersonID int64) error
	DeletePerson(ctx context.Context, id int64) error
}

// Clusterer assigns embeddings to Persons by nearest-centroid distance.
type Clusterer struct {
	store     PersonStore
	threshold float64
	index     *CentroidIndex
	log       zerolog.Logger
}

// New returns a Clusterer. threshold is the maximum cosine distance for a
// match to an existing Person; above it a new Person is created.
func New(store PersonStore, threshold float64, log zerolog.Logger) *Clusterer {
	return &Clusterer{
		store:     store,
		threshold: threshold,
		index:     NewCentroidIndex(),
		log:       log.With().Str("component", "clusterer").Logger(),
	}
}

// Refresh reloads every Person centroid from the Store. Call this once at
// the start of a processing batch; per-photo assignments within the batch
// keep the in-memory index current via Upsert so a second face in the
// same batch sees the first face's effect.
func (c *Clusterer) Refresh(ctx context.Context) error {
	centroids, err := c.store.AllPersonCentroids(ctx)
	if err != nil {
		return fmt.Errorf("loading person centroids: %w", err)
	}
	c.index.Build(centroids)
	return nil
}

// AssignResult reports the outcome of one Assign call.
type AssignResult struct {
	PersonID int64
	Created  bool
	Distance float64
}

// Assign normalizes e, finds the nearest Person, and either assigns to it
// (updating its centroid as a running weighted mean) or creates a new
// Person. It and Merge are the only mutators of centroid state, so callers must not
// race two Assign calls for the same photo without external serialization
// (the worker pool's per-photo pipeline already guarantees this).
func (c *Clusterer) Assign(ctx context.Context, e []float32) (AssignResult, error) {
	unit := Normalize(e)

	personID, dist, ok := c.index.Nearest(unit)
	if ok && dist < c.threshold {
		faceCount, err := c.store.PersonFaceCount(ctx, personID)
		if err != nil {
			return AssignResult{}, fmt.Errorf("reading person face count: %w", err)
		}
		newCentroid := WeightedMean(c.index.vectorFor(personID), faceCount, unit)
		if err := c.store.UpdatePersonCentroid(ctx, personID, newCentroid, faceCount+1); err != nil {
			return AssignResult{}, fmt.Errorf("updating person centroid: %w", err)
		}
		c.index.Upsert(personID, newCentroid)
		return AssignResult{PersonID: personID, Created: false, Distance: dist}, nil
	}

	ordinal, err := c.store.NextPersonOrdinal(ctx)
	if err != nil {
		return AssignResult{}, fmt.Errorf("allocating person ordinal: %w", err)
	}
	name := fmt.Sprintf("Person_%03d", ordinal)
	newID, err := c.store.CreatePerson(ctx, name, unit)
	if err != nil {
		return AssignResult{}, fmt.Errorf("creating person: %w", err)
	}
	c.index.Upsert(newID, unit)
	c.log.Info().Int64("person_id", newID).Str("name", name).Msg("created new person cluster")
	return AssignResult{PersonID: newID, Created: true, Distance: dist}, nil
}

// Merge combines two Persons into one: reassigns every Face from
// fromPersonID to toPersonID, blends their centroids by a face-count
// weighted average (renormalized), and deletes the vacated Person. It is
// used for manual operator correction, never by the automatic pipeline.
func (c *Clusterer) Merge(ctx context.Context, fromPersonID, toPersonID int64) error {
	if fromPersonID == toPersonID {
		return fmt.Errorf("merge: source and target person are the same (%d)", fromPersonID)
	}

	fromCentroid := c.index.vectorFor(fromPersonID)
	toCentroid := c.index.vectorFor(toPersonID)
	fromCount, err := c.store.PersonFaceCount(ctx, fromPersonID)
	if err != nil {
		return fmt.Errorf("reading source person face count: %w", err)
	}
	toCount, err := c.store.PersonFaceCount(ctx, toPersonID)
	if err != nil {
		return fmt.Errorf("reading target person face count: %w", err)
	}

	blended := blendCentroids(toCentroid, toCount, fromCentroid, fromCount)

	if err := c.store.ReassignFaces(ctx, fromPersonID, toPersonID); err != nil {
		return fmt.Errorf("reassigning faces: %w", err)
	}
	if err := c.store.UpdatePersonCentroid(ctx, toPersonID, blended, fromCount+toCount); err != nil {
		return fmt.Errorf("updating merged centroid: %w", err)
	}
	if err := c.store.DeletePerson(ctx, fromPersonID); err != nil {
		return fmt.Errorf("deleting vacated person: %w", err)
	}
	c.index.Upsert(toPersonID, blended)
	c.log.Info().Int64("from", fromPersonID).Int64("to", toPersonID).Msg("merged person clusters")
	return nil
}

func blendCentroids(a []float32, aCount int, b []float32, bCount int) []float32 {
	total := aCount + bCount
	if total == 0 {
		return Normalize(a)
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = float32((float64(a[i])*float64(aCount) + float64(b[i])*float64(bCount)) / float64(total))
	}
	return Normalize(out)
}
