// Package remotestore mirrors routed local files to a remote object store,
// keyed by the same folder structure the Router produces locally.
package remotestore

import "context"

// RemoteStore is the capability seam the UploadQueue and Enrollment
// drive against; spec.md leaves its concrete backend unspecified, the
// way it leaves FaceAnalyzer abstract.
type RemoteStore interface {
	// Upload mirrors a local file at relativeTo's path under the remote
	// root, creating any missing parent folders.
	Upload(ctx context.Context, localPath, relativeTo string) error

	// EnsureFolder creates the remote folder at relativePath if it is
	// absent. The Router does not call it; remote folders are created on
	// demand by Upload.
	EnsureFolder(ctx context.Context, relativePath string) error

	// RenameFolder renames a Person's remote folder in place, used by
	// Enrollment when a guest's cluster gets a human-readable name.
	RenameFolder(ctx context.Context, oldRelativePath, newRelativePath string) error
}
