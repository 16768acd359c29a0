package clusterer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type fakePerson struct {
	id        int64
	name      string
	centroid  []float32
	faceCount int
}

type fakeStore struct {
	persons map[int64]*fakePerson
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{persons: make(map[int64]*fakePerson)}
}

func (f *fakeStore) AllPersonCentroids(ctx context.Context) ([]Centroid, error) {
	out := make([]Centroid, 0, len(f.persons))
	for _, p := range f.persons {
		out = append(out, Centroid{PersonID: p.id, Vector: p.centroid})
	}
	return out, nil
}

func (f *fakeStore) CreatePerson(ctx context.Context, name string, centroid []float32) (int64, error) {
	f.nextID++
	f.persons[f.nextID] = &fakePerson{id: f.nextID, name: name, centroid: centroid, faceCount: 1}
	return f.nextID, nil
}

func (f *fakeStore) UpdatePersonCentroid(ctx context.Context, id int64, centroid []float32, faceCount int) error {
	f.persons[id].centroid = centroid
	f.persons[id].faceCount = faceCount
	return nil
}

func (f *fakeStore) PersonFaceCount(ctx context.Context, id int64) (int, error) {
	return f.persons[id].faceCount, nil
}

func (f *fakeStore) NextPersonOrdinal(ctx context.Context) (int64, error) {
	return f.nextID + 1, nil
}

func (f *fakeStore) ReassignFaces(ctx context.Context, fromPersonID, toPersonID int64) error {
	return nil
}

func (f *fakeStore) DeletePerson(ctx context.Context, id int64) error {
	delete(f.persons, id)
	return nil
}

func TestAssign_CreatesFirstPerson(t *testing.T) {
	store := newFakeStore()
	c := New(store, 0.6, zerolog.Nop())
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	result, err := c.Assign(ctx, []float32{1, 0, 0})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !result.Created {
		t.Error("expected a new person to be created")
	}
	if store.persons[result.PersonID].faceCount != 1 {
		t.Errorf("expected face count 1, got %d", store.persons[result.PersonID].faceCount)
	}
}

func TestAssign_MatchesWithinThreshold(t *testing.T) {
	store := newFakeStore()
	c := New(store, 0.6, zerolog.Nop())
	ctx := context.Background()
	c.Refresh(ctx)

	first, err := c.Assign(ctx, []float32{1, 0, 0})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	second, err := c.Assign(ctx, []float32{0.95, 0.05, 0})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if second.Created {
		t.Error("expected the second embedding to match the existing person")
	}
	if second.PersonID != first.PersonID {
		t.Errorf("expected person %d, got %d", first.PersonID, second.PersonID)
	}
	if store.persons[first.PersonID].faceCount != 2 {
		t.Errorf("expected face count 2, got %d", store.persons[first.PersonID].faceCount)
	}
}

func TestAssign_CreatesNewPersonBeyondThreshold(t *testing.T) {
	store := newFakeStore()
	c := New(store, 0.1, zerolog.Nop())
	ctx := context.Background()
	c.Refresh(ctx)

	first, _ := c.Assign(ctx, []float32{1, 0, 0})
	second, err := c.Assign(ctx, []float32{0, 1, 0})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if !second.Created {
		t.Error("expected an orthogonal embedding to start a new cluster")
	}
	if second.PersonID == first.PersonID {
		t.Error("expected distinct person IDs")
	}
}

func TestAssign_CentroidStaysUnitNormalized(t *testing.T) {
	store := newFakeStore()
	c := New(store, 0.6, zerolog.Nop())
	ctx := context.Background()
	c.Refresh(ctx)

	result, _ := c.Assign(ctx, []float32{3, 4, 0})
	c.Assign(ctx, []float32{0.6, 0.8, 0})

	centroid := store.persons[result.PersonID].centroid
	var sumSq float64
	for _, v := range centroid {
		sumSq += float64(v) * float64(v)
	}
	if diff := sumSq - 1.0; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected unit-normalized centroid, got squared norm %f", sumSq)
	}
}

func TestMerge_CombinesCentroidsAndDeletesSource(t *testing.T) {
	store := newFakeStore()
	c := New(store, 0.6, zerolog.Nop())
	ctx := context.Background()
	c.Refresh(ctx)

	a, _ := c.Assign(ctx, []float32{1, 0, 0})
	b, _ := c.Assign(ctx, []float32{0, 1, 0})

	if err := c.Merge(ctx, b.PersonID, a.PersonID); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if _, exists := store.persons[b.PersonID]; exists {
		t.Error("expected source person to be deleted after merge")
	}
	merged := store.persons[a.PersonID]
	if merged.faceCount != 2 {
		t.Errorf("expected merged face count 2, got %d", merged.faceCount)
	}
}

func TestCosineDistance_IdenticalVectorsAreZero(t *testing.T) {
	d := CosineDistance([]float32{1, 2, 3}, []float32{1, 2, 3})
	if d < -1e-9 || d > 1e-9 {
		t.Errorf("expected distance 0 for identical vectors, got %f", d)
	}
}

func TestCosineDistance_OrthogonalVectorsAreOne(t *testing.T) {
	d := CosineDistance([]float32{1, 0}, []float32{0, 1})
	if d < 1-1e-9 || d > 1+1e-9 {
		t.Errorf("expected distance 1 for orthogonal vectors, got %f", d)
	}
}

func TestCosineDistance_MismatchedLengthIsMaxDistance(t *testing.T) {
	d := CosineDistance([]float32{1, 0}, []float32{1, 0, 0})
	if d != 2.0 {
		t.Errorf("expected max distance 2.0 for mismatched lengths, got %f", d)
	}
}
