// Package enroll binds a guest's selfie to an existing Person cluster:
// detect, match, check for a prior Enrollment, then rename the Person's
// folder everywhere it's tracked (local disk, Store, remote mirror,
// upload queue) before recording the Enrollment.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kozaktomas/eventphoto/internal/clusterer"
	"github.com/kozaktomas/eventphoto/internal/engineerr"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
	"github.com/kozaktomas/eventphoto/internal/foldername"
	"github.com/kozaktomas/eventphoto/internal/remotestore"
	"github.com/kozaktomas/eventphoto/internal/router"
	"github.com/rs/zerolog"
)

const referenceImageName = "00_REFERENCE_SELFIE.jpg"

// Store is the subset of *store.Store the enrollment flow needs.
type Store interface {
	AllPersonCentroids(ctx context.Context) ([]clusterer.Centroid, error)
	PersonByID(ctx context.Context, personID int64) (PersonRecord, error)
	RenamePerson(ctx context.Context, personID int64, name string) error
	EnrollmentOfPerson(ctx context.Context, personID int64) (existingUserName string, found bool, err error)
	RewriteUploadPaths(ctx context.Context, oldPrefix, newPrefix string) (int64, error)
	CreateEnrollment(ctx context.Context, personID int64, userName, phone, email, selfiePath string, matchConfidence float64, consentGiven bool) (int64, error)
}

// PersonRecord is the narrow Person projection enroll needs.
type PersonRecord struct {
	ID   int64
	Name string
}

// Request is one enrollment attempt.
type Request struct {
	SelfiePath   string
	UserName     string
	Phone        string
	Email        string
	ConsentGiven bool
}

// Outcome reports the result of a successful enrollment.
type Outcome struct {
	PersonID        int64
	EnrollmentID    int64
	FolderName      string
	MatchConfidence float64
}

// Enroller runs the selfie-to-cluster binding procedure.
type Enroller struct {
	store     Store
	analyzer  faceanalyzer.FaceAnalyzer
	remote    remotestore.RemoteStore
	router    *router.Router
	threshold float64
	log       zerolog.Logger
}

// New constructs an Enroller. threshold must match the Clusterer's
// clusterThreshold so a selfie matches the same cluster a face from the
// event itself would.
func New(store Store, analyzer faceanalyzer.FaceAnalyzer, remote remotestore.RemoteStore, rt *router.Router, threshold float64, log zerolog.Logger) *Enroller {
	return &Enroller{
		store: store, analyzer: analyzer, remote: remote, router: rt, threshold: threshold,
		log: log.With().Str("component", "enroll").Logger(),
	}
}

// Enroll runs the five-step procedure from detection through Enrollment
// creation. Errors are classified via errors.Is against
// engineerr.ErrNoFaceInSelfie, engineerr.ErrNoClusterMatch, and
// engineerr.ErrAlreadyEnrolled for the caller to present distinct outcomes.
func (e *Enroller) Enroll(ctx context.Context, req Request) (Outcome, error) {
	personID, confidence, err := e.matchCluster(ctx, req.SelfiePath)
	if err != nil {
		return Outcome{MatchConfidence: confidence}, err
	}

	if existingName, found, err := e.store.EnrollmentOfPerson(ctx, personID); err != nil {
		return Outcome{}, fmt.Errorf("checking existing enrollment: %w", err)
	} else if found {
		return Outcome{}, fmt.Errorf("%w: already enrolled as %q", engineerr.ErrAlreadyEnrolled, existingName)
	}

	person, err := e.store.PersonByID(ctx, personID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading matched person: %w", err)
	}

	newName, err := e.rename(ctx, person, req.UserName)
	if err != nil {
		return Outcome{}, err
	}

	if err := e.saveReferenceImage(req.SelfiePath, newName); err != nil {
		e.log.Error().Err(err).Int64("person_id", personID).Msg("saving reference selfie")
	}

	enrollmentID, err := e.store.CreateEnrollment(ctx, personID, req.UserName, req.Phone, req.Email, req.SelfiePath, confidence, req.ConsentGiven)
	if err != nil {
		return Outcome{}, fmt.Errorf("creating enrollment record: %w", err)
	}

	return Outcome{PersonID: personID, EnrollmentID: enrollmentID, FolderName: newName, MatchConfidence: confidence}, nil
}

// matchCluster implements steps 1-3: detect, pick the highest-confidence
// face, normalize, and find the nearest Person.
func (e *Enroller) matchCluster(ctx context.Context, selfiePath string) (personID int64, confidence float64, err error) {
	data, err := os.ReadFile(selfiePath)
	if err != nil {
		return 0, 0, fmt.Errorf("reading selfie: %w", err)
	}

	detections, err := e.analyzer.DetectAndEmbed(ctx, data)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", engineerr.ErrDetectFailed, err)
	}
	if len(detections) == 0 {
		return 0, 0, engineerr.ErrNoFaceInSelfie
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	centroids, err := e.store.AllPersonCentroids(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("loading person centroids: %w", err)
	}
	if len(centroids) == 0 {
		return 0, best.Confidence, engineerr.ErrNoClusterMatch
	}

	index := clusterer.NewCentroidIndex()
	index.Build(centroids)

	unit := clusterer.Normalize(best.Embedding)
	matchedID, dist, ok := index.Nearest(unit)
	if !ok || dist >= e.threshold {
		return 0, best.Confidence, engineerr.ErrNoClusterMatch
	}

	return matchedID, 1 - dist, nil
}

// rename implements step 5's filesystem-then-store-then-queue ordering:
// the local rename is attempted first and only on success do Store and
// upload-queue state move; the remote rename is best-effort and never
// blocks the return.
func (e *Enroller) rename(ctx context.Context, person PersonRecord, userName string) (string, error) {
	newName := e.uniqueFolderName(ctx, person.ID, userName)
	if newName == person.Name {
		return newName, nil
	}

	oldPath := e.router.PersonFolderPath(person.Name)
	newPath := e.router.PersonFolderPath(newName)

	if err := renameOrCreate(oldPath, newPath); err != nil {
		return "", fmt.Errorf("renaming local person folder: %w", err)
	}

	if err := e.store.RenamePerson(ctx, person.ID, newName); err != nil {
		return "", fmt.Errorf("renaming person in store: %w", err)
	}

	oldRelative := router.PersonFolderRelative(person.Name)
	newRelative := router.PersonFolderRelative(newName)

	if _, err := e.store.RewriteUploadPaths(ctx, oldPath, newPath); err != nil {
		return "", fmt.Errorf("rewriting pending upload paths: %w", err)
	}

	if e.remote != nil {
		if err := e.remote.RenameFolder(ctx, oldRelative, newRelative); err != nil {
			e.log.Error().Err(err).Str("old", oldRelative).Str("new", newRelative).Msg("remote folder rename failed; local state already updated")
		}
	}

	return newName, nil
}

// uniqueFolderName derives a folder-safe name from userName and, if a
// folder with that name already exists under People/, suffixes _<personId>.
func (e *Enroller) uniqueFolderName(ctx context.Context, personID int64, userName string) string {
	base := foldername.DeriveFolderSafe(userName)
	candidate := base
	if _, err := os.Stat(e.router.PersonFolderPath(candidate)); err == nil {
		candidate = fmt.Sprintf("%s_%d", base, personID)
	}
	return candidate
}

// renameOrCreate moves oldPath to newPath, or creates newPath fresh if
// oldPath doesn't exist yet (a Person with no routed photos so far).
func renameOrCreate(oldPath, newPath string) error {
	if _, err := os.Stat(oldPath); errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(newPath, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return err
	}
	return os.Rename(oldPath, newPath)
}

func (e *Enroller) saveReferenceImage(selfiePath, folderName string) error {
	dest := filepath.Join(e.router.PersonFolderPath(folderName), referenceImageName)
	in, err := os.Open(selfiePath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
