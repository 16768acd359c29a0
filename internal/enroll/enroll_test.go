package enroll

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/eventphoto/internal/clusterer"
	"github.com/kozaktomas/eventphoto/internal/engineerr"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
	"github.com/kozaktomas/eventphoto/internal/remotestore"
	"github.com/kozaktomas/eventphoto/internal/router"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	centroids   []clusterer.Centroid
	persons     map[int64]PersonRecord
	enrollments map[int64]string
	renamed     map[int64]string
	rewrites    [][2]string
	created     []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		persons:     make(map[int64]PersonRecord),
		enrollments: make(map[int64]string),
		renamed:     make(map[int64]string),
	}
}

func (s *fakeStore) AllPersonCentroids(ctx context.Context) ([]clusterer.Centroid, error) {
	return s.centroids, nil
}

func (s *fakeStore) PersonByID(ctx context.Context, personID int64) (PersonRecord, error) {
	p, ok := s.persons[personID]
	if !ok {
		return PersonRecord{}, errors.New("no such person")
	}
	return p, nil
}

func (s *fakeStore) RenamePerson(ctx context.Context, personID int64, name string) error {
	s.renamed[personID] = name
	p := s.persons[personID]
	p.Name = name
	s.persons[personID] = p
	return nil
}

func (s *fakeStore) EnrollmentOfPerson(ctx context.Context, personID int64) (string, bool, error) {
	name, found := s.enrollments[personID]
	return name, found, nil
}

func (s *fakeStore) RewriteUploadPaths(ctx context.Context, oldPrefix, newPrefix string) (int64, error) {
	s.rewrites = append(s.rewrites, [2]string{oldPrefix, newPrefix})
	return 0, nil
}

func (s *fakeStore) CreateEnrollment(ctx context.Context, personID int64, userName, phone, email, selfiePath string, matchConfidence float64, consentGiven bool) (int64, error) {
	s.created = append(s.created, personID)
	s.enrollments[personID] = userName
	return int64(len(s.created)), nil
}

func writeSelfie(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "selfie.jpg")
	if err := os.WriteFile(path, []byte("selfie-bytes"), 0o644); err != nil {
		t.Fatalf("write selfie: %v", err)
	}
	return path
}

func setupPersonFolder(t *testing.T, eventRoot, name string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(eventRoot, "People", name), 0o755); err != nil {
		t.Fatalf("mkdir person folder: %v", err)
	}
}

func TestEnroll_NoFaceReturnsSentinel(t *testing.T) {
	dir := t.TempDir()
	selfie := writeSelfie(t, dir)

	st := newFakeStore()
	analyzer := faceanalyzer.NewFake()
	rt := router.New(dir, false)

	e := New(st, analyzer, remotestore.NewFake(), rt, 0.6, zerolog.Nop())
	_, err := e.Enroll(context.Background(), Request{SelfiePath: selfie, UserName: "Jane Doe"})
	if !errors.Is(err, engineerr.ErrNoFaceInSelfie) {
		t.Fatalf("expected ErrNoFaceInSelfie, got %v", err)
	}
}

func TestEnroll_NoPersonsReturnsNoMatch(t *testing.T) {
	dir := t.TempDir()
	selfie := writeSelfie(t, dir)

	st := newFakeStore()
	analyzer := faceanalyzer.NewFake()
	analyzer.Detections["selfie-bytes"] = []faceanalyzer.Detection{{Embedding: []float32{1, 0, 0}, Confidence: 0.9}}
	rt := router.New(dir, false)

	e := New(st, analyzer, remotestore.NewFake(), rt, 0.6, zerolog.Nop())
	_, err := e.Enroll(context.Background(), Request{SelfiePath: selfie, UserName: "Jane Doe"})
	if !errors.Is(err, engineerr.ErrNoClusterMatch) {
		t.Fatalf("expected ErrNoClusterMatch, got %v", err)
	}
}

func TestEnroll_AlreadyEnrolledReturnsSentinel(t *testing.T) {
	dir := t.TempDir()
	selfie := writeSelfie(t, dir)
	setupPersonFolder(t, dir, "Person_003")

	st := newFakeStore()
	st.centroids = []clusterer.Centroid{{PersonID: 3, Vector: clusterer.Normalize([]float32{1, 0, 0})}}
	st.persons[3] = PersonRecord{ID: 3, Name: "Person_003"}
	st.enrollments[3] = "Existing Person"

	analyzer := faceanalyzer.NewFake()
	analyzer.Detections["selfie-bytes"] = []faceanalyzer.Detection{{Embedding: []float32{1, 0, 0}, Confidence: 0.9}}
	rt := router.New(dir, false)

	e := New(st, analyzer, remotestore.NewFake(), rt, 0.6, zerolog.Nop())
	_, err := e.Enroll(context.Background(), Request{SelfiePath: selfie, UserName: "Jane Doe"})
	if !errors.Is(err, engineerr.ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
}

func TestEnroll_SuccessRenamesFolderAndRecordsEnrollment(t *testing.T) {
	dir := t.TempDir()
	selfie := writeSelfie(t, dir)
	setupPersonFolder(t, dir, "Person_003")

	st := newFakeStore()
	st.centroids = []clusterer.Centroid{{PersonID: 3, Vector: clusterer.Normalize([]float32{1, 0, 0})}}
	st.persons[3] = PersonRecord{ID: 3, Name: "Person_003"}

	analyzer := faceanalyzer.NewFake()
	analyzer.Detections["selfie-bytes"] = []faceanalyzer.Detection{{Embedding: []float32{1, 0, 0}, Confidence: 0.9}}
	rt := router.New(dir, false)
	remote := remotestore.NewFake()

	e := New(st, analyzer, remote, rt, 0.6, zerolog.Nop())
	out, err := e.Enroll(context.Background(), Request{SelfiePath: selfie, UserName: "Jane Doe", ConsentGiven: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FolderName != "Jane_Doe" {
		t.Fatalf("expected folder Jane_Doe, got %q", out.FolderName)
	}
	if _, err := os.Stat(filepath.Join(dir, "People", "Jane_Doe")); err != nil {
		t.Fatalf("expected renamed folder to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "People", "Jane_Doe", referenceImageName)); err != nil {
		t.Fatalf("expected reference selfie saved: %v", err)
	}
	if st.renamed[3] != "Jane_Doe" {
		t.Fatalf("expected store rename to Jane_Doe, got %q", st.renamed[3])
	}
	if len(st.rewrites) != 1 {
		t.Fatalf("expected one upload path rewrite, got %d", len(st.rewrites))
	}
	if len(st.created) != 1 {
		t.Fatalf("expected one enrollment created, got %d", len(st.created))
	}
}

func TestEnroll_FolderCollisionAppendsPersonID(t *testing.T) {
	dir := t.TempDir()
	selfie := writeSelfie(t, dir)
	setupPersonFolder(t, dir, "Person_003")
	setupPersonFolder(t, dir, "Jane_Doe") // claimed by someone else already

	st := newFakeStore()
	st.centroids = []clusterer.Centroid{{PersonID: 3, Vector: clusterer.Normalize([]float32{1, 0, 0})}}
	st.persons[3] = PersonRecord{ID: 3, Name: "Person_003"}

	analyzer := faceanalyzer.NewFake()
	analyzer.Detections["selfie-bytes"] = []faceanalyzer.Detection{{Embedding: []float32{1, 0, 0}, Confidence: 0.9}}
	rt := router.New(dir, false)

	e := New(st, analyzer, remotestore.NewFake(), rt, 0.6, zerolog.Nop())
	out, err := e.Enroll(context.Background(), Request{SelfiePath: selfie, UserName: "Jane Doe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FolderName != "Jane_Doe_3" {
		t.Fatalf("expected collision-suffixed folder Jane_Doe_3, got %q", out.FolderName)
	}
}
