package worker

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/eventphoto/internal/clusterer"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
	"github.com/kozaktomas/eventphoto/internal/processor"
	"github.com/kozaktomas/eventphoto/internal/router"
	"github.com/rs/zerolog"
)

func procConfig() processor.Config {
	return processor.Config{MaxSize: 2048, ThumbSize: 400, JPEGQuality: 90}
}

func writeTestJPEGForWorker(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("writing test jpeg: %v", err)
	}
}

// fakeGate always allows processing immediately and counts completions.
type fakeGate struct {
	mu        sync.Mutex
	processed int
}

func (g *fakeGate) CanProcess(ctx context.Context, timeout time.Duration) bool { return true }
func (g *fakeGate) OnProcessed() {
	g.mu.Lock()
	g.processed++
	g.mu.Unlock()
}

// fakePersonStore is a minimal in-memory clusterer.PersonStore for tests.
type fakePersonStore struct {
	mu       sync.Mutex
	nextID   int64
	nextOrd  int64
	centroid map[int64][]float32
	count    map[int64]int
}

func newFakePersonStore() *fakePersonStore {
	return &fakePersonStore{centroid: make(map[int64][]float32), count: make(map[int64]int)}
}

func (s *fakePersonStore) AllPersonCentroids(ctx context.Context) ([]clusterer.Centroid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []clusterer.Centroid
	for id, c := range s.centroid {
		out = append(out, clusterer.Centroid{PersonID: id, Vector: c})
	}
	return out, nil
}

func (s *fakePersonStore) CreatePerson(ctx context.Context, name string, centroid []float32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.centroid[s.nextID] = centroid
	s.count[s.nextID] = 1
	return s.nextID, nil
}

func (s *fakePersonStore) UpdatePersonCentroid(ctx context.Context, id int64, centroid []float32, faceCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.centroid[id] = centroid
	s.count[id] = faceCount
	return nil
}

func (s *fakePersonStore) PersonFaceCount(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count[id], nil
}

func (s *fakePersonStore) NextPersonOrdinal(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrd++
	return s.nextOrd, nil
}

func (s *fakePersonStore) ReassignFaces(ctx context.Context, from, to int64) error { return nil }
func (s *fakePersonStore) DeletePerson(ctx context.Context, id int64) error        { return nil }

// fakeStore implements worker.Store entirely in memory.
type fakeStore struct {
	mu       sync.Mutex
	status   map[int64]string
	faces    map[int64][]int64
	names    map[int64]string
	uploads  []string
	nextFace int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{status: make(map[int64]string), faces: make(map[int64][]int64), names: map[int64]string{1: "Person_001"}}
}

func (s *fakeStore) SetProcessing(ctx context.Context, photoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[photoID] = "processing"
	return nil
}

func (s *fakeStore) SetCompleted(ctx context.Context, photoID int64, processedPath, thumbPath string, faceCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[photoID] = "completed"
	return nil
}

func (s *fakeStore) SetError(ctx context.Context, photoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[photoID] = "error"
	return nil
}

func (s *fakeStore) CreateFace(ctx context.Context, photoID int64, bx, by, bw, bh float64, embedding []float32, confidence float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFace++
	s.faces[photoID] = append(s.faces[photoID], s.nextFace)
	return s.nextFace, nil
}

func (s *fakeStore) AssignFace(ctx context.Context, faceID int64, personID *int64) error { return nil }

func (s *fakeStore) DistinctPersonsOfPhoto(ctx context.Context, photoID int64) ([]int64, error) {
	return nil, nil
}

func (s *fakeStore) PersonName(ctx context.Context, personID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[personID], nil
}

func (s *fakeStore) EnqueueUpload(ctx context.Context, photoID int64, localPath, relativeTo string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, localPath)
	return int64(len(s.uploads)), nil
}

func TestPool_ProcessesJobsAndCallsOnProcessed(t *testing.T) {
	jobs := make(chan Job, 1)
	gate := &fakeGate{}
	st := newFakeStore()
	ps := newFakePersonStore()
	cl := clusterer.New(ps, 0.6, zerolog.Nop())
	eventRoot := t.TempDir()
	rt := router.New(eventRoot, false)

	src := filepath.Join(t.TempDir(), "incoming", "a.jpg")
	writeTestJPEGForWorker(t, src, 800, 600)

	outputDir := t.TempDir()
	analyzer := faceanalyzer.NewFake()
	analyzerFn := func() (faceanalyzer.FaceAnalyzer, error) { return analyzer, nil }

	pool := New(jobs, 1, gate, st, cl, rt, analyzerFn, procConfig(), outputDir, eventRoot, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	jobs <- Job{PhotoID: 1, OriginalPath: src}
	close(jobs)

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain in time")
	}
	cancel()

	gate.mu.Lock()
	processed := gate.processed
	gate.mu.Unlock()
	if processed != 1 {
		t.Fatalf("expected OnProcessed called once, got %d", processed)
	}

	st.mu.Lock()
	status := st.status[1]
	st.mu.Unlock()
	if status != "completed" {
		t.Fatalf("expected photo status completed, got %q", status)
	}
}
