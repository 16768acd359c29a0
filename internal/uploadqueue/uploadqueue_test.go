package uploadqueue

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/eventphoto/internal/remotestore"
	"github.com/rs/zerolog"
)

type fakeGate struct {
	uploadReady chan struct{}
	completed   int
}

func newFakeGate() *fakeGate {
	return &fakeGate{uploadReady: make(chan struct{}, 1)}
}

func (g *fakeGate) ShouldUpload(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-g.uploadReady:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}

func (g *fakeGate) OnUploadsComplete() { g.completed++ }

type fakeJobStore struct {
	mu      sync.Mutex
	pending []StoreJob
	failed  []StoreJob
	updates map[int64]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{updates: make(map[int64]string)}
}

func (s *fakeJobStore) PendingUploads(ctx context.Context, limit int) ([]StoreJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *fakeJobStore) FailedUploads(ctx context.Context) ([]StoreJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed, nil
}

func (s *fakeJobStore) UpdateUpload(ctx context.Context, jobID int64, status string, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[jobID] = status
	return nil
}

func (s *fakeJobStore) ResetStuckUploads(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func TestQueue_UploadsPendingJobsAndCompletesTurn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	st := newFakeJobStore()
	st.pending = []StoreJob{{ID: 1, LocalPath: path, RelativeTo: "People/Jane/Solo/000001.jpg"}}
	remote := remotestore.NewFake()
	gate := newFakeGate()

	q := New(st, remote, gate, 10, 5, time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	gate.uploadReady <- struct{}{}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if gate.completed != 1 {
		t.Fatalf("expected OnUploadsComplete called once, got %d", gate.completed)
	}
	if remote.Uploaded["People/Jane/Solo/000001.jpg"] != path {
		t.Fatalf("expected file uploaded to remote, got %+v", remote.Uploaded)
	}
	if st.updates[1] != statusCompleted {
		t.Fatalf("expected job marked completed, got %q", st.updates[1])
	}
}

func TestUploadOne_MissingFileFailsWithoutRetry(t *testing.T) {
	st := newFakeJobStore()
	remote := remotestore.NewFake()
	gate := newFakeGate()
	q := New(st, remote, gate, 10, 5, time.Millisecond, time.Minute, zerolog.Nop())

	q.uploadOne(context.Background(), StoreJob{ID: 7, LocalPath: "/does/not/exist.jpg"})

	if st.updates[7] != statusFailed {
		t.Fatalf("expected missing file marked failed, got %q", st.updates[7])
	}
}
