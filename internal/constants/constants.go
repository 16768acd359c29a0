// Package constants centralizes shared numeric and string constants used
// across the engine so tuning a value never means hunting through every
// package that happens to use it.
package constants

// Clustering constants
const (
	// DefaultClusterThreshold is the default maximum cosine distance for a
	// face to be assigned to an existing Person cluster.
	DefaultClusterThreshold = 0.6

	// EmbeddingDim is the fixed dimensionality of face embeddings produced
	// by the FaceAnalyzer capability.
	EmbeddingDim = 512
)

// Processing constants
const (
	// DefaultWorkerCount is the default size of the processing worker pool.
	DefaultWorkerCount = 4

	// DefaultMaxImageSize is the default longest-edge pixel budget for a
	// normalized processed JPEG.
	DefaultMaxImageSize = 2048

	// DefaultThumbnailSize is the default square edge size of a thumbnail.
	DefaultThumbnailSize = 400

	// DetectorMinLongEdge is the minimum long-edge size an image must have
	// before it is handed to the face analyzer; smaller inputs are upscaled
	// for detection only.
	DetectorMinLongEdge = 640
)

// Phase and batching constants
const (
	// DefaultProcessBatchSize is the default PhaseCoordinator batch size
	// that triggers a PROCESSING -> UPLOADING switch.
	DefaultProcessBatchSize = 20

	// DefaultStuckProcessingSeconds is how long a Photo may sit in
	// `processing` before ResetStuckProcessing reclaims it.
	DefaultStuckProcessingSeconds = 600

	// DefaultUploadStuckSeconds is how long an UploadJob may sit in
	// `uploading` before it is reset back to `pending`.
	DefaultUploadStuckSeconds = 300
)

// Retry constants
const (
	// StoreLockRetries is the number of times the Store retries a locked-row
	// error before surfacing a failure to the caller.
	StoreLockRetries = 5

	// StoreLockBaseDelayMillis is the base delay for the Store's locked-row
	// backoff: delay = base * 2^attempt.
	StoreLockBaseDelayMillis = 1000

	// DefaultUploadMaxRetries is the default number of retries an UploadJob
	// gets before it is frozen at retry_count = max.
	DefaultUploadMaxRetries = 5
)

// Filenames and folder names
const (
	// ReferenceSelfiePrefix guarantees the enrollment reference image sorts
	// first within its Person folder.
	ReferenceSelfiePrefix = "00_REFERENCE_SELFIE"

	// PhotoIDPadWidth is the zero-pad width used for photo IDs in filenames.
	PhotoIDPadWidth = 6

	DirIncoming  = "Incoming"
	DirProcessed = "Processed"
	DirPeople    = "People"
	DirSolo      = "Solo"
	DirGroup     = "Group"
	DirAdmin     = "Admin"
	DirNoFaces   = "NoFaces"
	DirErrors    = "Errors"
)
