// Package router materializes the Person/Solo and Person/Group folder tree
// for a completed photo, fanning a single processed JPEG out to one
// destination per distinct person it contains.
package router

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kozaktomas/eventphoto/internal/engineerr"
	"github.com/kozaktomas/eventphoto/internal/foldername"
)

const (
	dirPeople   = "People"
	dirAdmin    = "Admin"
	dirSolo     = "Solo"
	dirGroup    = "Group"
	dirNoFaces  = "NoFaces"
	dirErrors   = "Errors"
	pathPadding = 6
)

// Destination is one routed copy of a processed photo.
type Destination struct {
	PersonID int64
	Path     string
	Created  bool // false when the destination already existed (already routed) or its copy failed
}

// Router fans a processed photo out to the event root's folder tree.
type Router struct {
	eventRoot    string
	useHardlinks bool
}

// New creates a Router rooted at eventRoot.
func New(eventRoot string, useHardlinks bool) *Router {
	return &Router{eventRoot: eventRoot, useHardlinks: useHardlinks}
}

// PersonLookup resolves a Person ID to its current folder-safe name.
type PersonLookup func(ctx context.Context, personID int64) (name string, err error)

// Route copies or hardlinks processedPath into the destination(s) implied
// by personIDs: Admin/NoFaces for zero persons, People/<name>/Solo for
// exactly one, People/<name>/Group for each person when there are several.
// Destinations that already exist are reported with Created=false and are
// not rewritten.
func (r *Router) Route(ctx context.Context, processedPath string, photoID int64, personIDs []int64, lookup PersonLookup) ([]Destination, error) {
	if len(personIDs) == 0 {
		dest := filepath.Join(r.eventRoot, dirAdmin, dirNoFaces, paddedName(photoID))
		created, err := r.place(processedPath, dest)
		if err != nil {
			return nil, fmt.Errorf("%w: routing to NoFaces: %v", engineerr.ErrRouteFailed, err)
		}
		return []Destination{{Path: dest, Created: created}}, nil
	}

	bucket := dirSolo
	if len(personIDs) > 1 {
		bucket = dirGroup
	}

	var destinations []Destination
	for _, personID := range personIDs {
		name, err := lookup(ctx, personID)
		if err != nil {
			return destinations, fmt.Errorf("%w: resolving person %d: %v", engineerr.ErrRouteFailed, personID, err)
		}
		personDir := filepath.Join(r.eventRoot, dirPeople, name, bucket)
		dest := filepath.Join(personDir, paddedName(photoID))

		created, err := r.place(processedPath, dest)
		if err != nil {
			// A per-destination copy failure is reported as Created=false,
			// the same as an already-routed destination; the copy error is
			// neither returned nor logged, and routing continues with the
			// remaining destinations.
			destinations = append(destinations, Destination{PersonID: personID, Path: dest, Created: false})
			continue
		}
		destinations = append(destinations, Destination{PersonID: personID, Path: dest, Created: created})
	}
	return destinations, nil
}

// RouteError moves the original source file into Admin/Errors, for photos
// that failed processing fatally.
func (r *Router) RouteError(originalPath string, photoID int64) (string, error) {
	dest := filepath.Join(r.eventRoot, dirAdmin, dirErrors, filepath.Base(originalPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating Admin/Errors: %v", engineerr.ErrRouteFailed, err)
	}
	if err := os.Rename(originalPath, dest); err != nil {
		if copyErr := copyFile(originalPath, dest); copyErr != nil {
			return "", fmt.Errorf("%w: moving to Admin/Errors: %v", engineerr.ErrRouteFailed, copyErr)
		}
		os.Remove(originalPath)
	}
	_ = photoID
	return dest, nil
}

// place ensures dest's parent directory exists and, unless dest already
// exists (already routed), hardlinks or copies src into it. It returns
// whether a new file was created.
func (r *Router) place(src, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("creating destination directory: %w", err)
	}

	if r.useHardlinks {
		if err := os.Link(src, dest); err == nil {
			return true, nil
		}
		// Cross-device or filesystem without hardlink support: fall back to
		// a full copy rather than failing the photo.
	}

	if err := copyFile(src, dest); err != nil {
		return false, fmt.Errorf("copying to destination: %w", err)
	}
	return true, nil
}

func paddedName(photoID int64) string {
	return fmt.Sprintf("%0*d.jpg", pathPadding, photoID)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
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

// FolderName is a thin convenience wrapper so callers building a
// PersonLookup from a store don't need to import foldername directly.
func FolderName(personName string) string {
	return foldername.DeriveFolderSafe(personName)
}

// PersonFolderPath returns the absolute People/<name> folder for a Person,
// the same path Route derives internally, for callers (enrollment) that
// need to rename it on disk.
func (r *Router) PersonFolderPath(personName string) string {
	return filepath.Join(r.eventRoot, dirPeople, personName)
}

// PersonFolderRelative returns People/<name>, the path relative to the
// event root that the remote store mirrors it under.
func PersonFolderRelative(personName string) string {
	return filepath.Join(dirPeople, personName)
}
