package remotestore

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveStore is a RemoteStore backed by a Google Drive folder tree, rooted
// at rootFolderID. It authenticates with a service-account credentials
// file, the non-interactive flow appropriate for a long-running engine
// (as opposed to the teacher's pack-sibling user-OAuth flow, which needs a
// human in the loop to approve a redirect).
type DriveStore struct {
	srv          *drive.Service
	rootFolderID string

	mu        sync.Mutex
	folderIDs map[string]string // relative path -> Drive folder ID, memoized
	locks     map[string]*sync.Mutex
}

// NewDriveStore authenticates against credentialsFile (a service-account
// JSON key) and returns a DriveStore rooted at rootFolderID.
func NewDriveStore(ctx context.Context, credentialsFile, rootFolderID string) (*DriveStore, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading drive credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parsing drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	return &DriveStore{
		srv:          srv,
		rootFolderID: rootFolderID,
		folderIDs:    map[string]string{"": rootFolderID},
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

// Upload mirrors localPath into the Drive folder tree at relativeTo,
// creating parent folders as needed.
func (d *DriveStore) Upload(ctx context.Context, localPath, relativeTo string) error {
	dir := path.Dir(filepathToSlash(relativeTo))
	if dir == "." {
		dir = ""
	}
	folderID, err := d.ensureFolderID(ctx, dir)
	if err != nil {
		return fmt.Errorf("ensuring parent folder: %w", err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	name := path.Base(filepathToSlash(relativeTo))
	_, err = d.srv.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Media(f).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("uploading %s: %w", relativeTo, err)
	}
	return nil
}

// EnsureFolder creates (if absent) the remote folder for relativePath.
func (d *DriveStore) EnsureFolder(ctx context.Context, relativePath string) error {
	_, err := d.ensureFolderID(ctx, filepathToSlash(relativePath))
	return err
}

// RenameFolder renames the Drive folder at oldRelativePath to the final
// path segment of newRelativePath, invalidating the memoized folder ID.
func (d *DriveStore) RenameFolder(ctx context.Context, oldRelativePath, newRelativePath string) error {
	oldRel := filepathToSlash(oldRelativePath)
	folderID, err := d.ensureFolderID(ctx, oldRel)
	if err != nil {
		return fmt.Errorf("resolving folder to rename: %w", err)
	}

	newName := path.Base(filepathToSlash(newRelativePath))
	if _, err := d.srv.Files.Update(folderID, &drive.File{Name: newName}).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("renaming folder %s: %w", oldRelativePath, err)
	}

	d.mu.Lock()
	delete(d.folderIDs, oldRel)
	d.folderIDs[filepathToSlash(newRelativePath)] = folderID
	d.mu.Unlock()
	return nil
}

// ensureFolderID walks relativePath component by component, creating any
// missing folder, and memoizes the resulting chain of IDs. Each distinct
// path gets its own lock so concurrent uploads into different folders
// don't serialize on one global mutex, but two uploads racing to create
// the same new folder do.
func (d *DriveStore) ensureFolderID(ctx context.Context, relativePath string) (string, error) {
	relativePath = strings.Trim(relativePath, "/")
	if relativePath == "" {
		return d.rootFolderID, nil
	}

	d.mu.Lock()
	if id, ok := d.folderIDs[relativePath]; ok {
		d.mu.Unlock()
		return id, nil
	}
	lock, ok := d.locks[relativePath]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[relativePath] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	d.mu.Lock()
	if id, ok := d.folderIDs[relativePath]; ok {
		d.mu.Unlock()
		return id, nil
	}
	d.mu.Unlock()

	parent := path.Dir(relativePath)
	if parent == "." {
		parent = ""
	}
	parentID, err := d.ensureFolderID(ctx, parent)
	if err != nil {
		return "", err
	}

	name := path.Base(relativePath)
	id, err := d.findOrCreateFolder(ctx, parentID, name)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.folderIDs[relativePath] = id
	d.mu.Unlock()
	return id, nil
}

func (d *DriveStore) findOrCreateFolder(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf(
		"mimeType='application/vnd.google-apps.folder' and trashed=false and name='%s' and '%s' in parents",
		escapeDriveQueryValue(name), parentID)

	result, err := d.srv.Files.List().
		Q(query).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("listing folder %s: %w", name, err)
	}
	if len(result.Files) > 0 {
		return result.Files[0].Id, nil
	}

	created, err := d.srv.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
		Parents:  []string{parentID},
	}).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating folder %s: %w", name, err)
	}
	return created.Id, nil
}

func escapeDriveQueryValue(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
