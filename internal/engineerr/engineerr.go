// Package engineerr defines the sentinel error kinds shared across the
// ingestion pipeline. Components wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify a failure with errors.Is without parsing strings.
package engineerr

import "errors"

var (
	// ErrDuplicateHash is returned by the Store when a Photo with the same
	// content hash already exists.
	ErrDuplicateHash = errors.New("duplicate file hash")

	// ErrUnsupportedInput is returned when a file's extension is not in the
	// configured supported set, or the file is not readable.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrDecodeFailed covers image and RAW decode or EXIF-orientation failures.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrDetectFailed is returned when the face analyzer capability fails.
	ErrDetectFailed = errors.New("face detection failed")

	// ErrStoreFailed is returned when a Store operation fails after its
	// retry budget is exhausted.
	ErrStoreFailed = errors.New("store operation failed")

	// ErrRouteFailed covers filesystem copy/link failures during routing.
	ErrRouteFailed = errors.New("routing failed")

	// ErrRemoteTransient covers timeouts, TLS errors, 5xx, and connection
	// resets from the remote store. Eligible for retry.
	ErrRemoteTransient = errors.New("remote store transient failure")

	// ErrRemoteFatal covers non-retryable remote store failures: auth,
	// permission, not-found, and any 4xx other than 429.
	ErrRemoteFatal = errors.New("remote store fatal failure")

	// ErrConsistency marks a detected invariant violation, e.g. a Face row
	// without a Photo. The next Store recovery pass is expected to clean it up.
	ErrConsistency = errors.New("consistency violation")

	// ErrNoFaceInSelfie is returned by the enrollment flow when the selfie
	// contains zero detected faces.
	ErrNoFaceInSelfie = errors.New("no face detected in selfie")

	// ErrNoClusterMatch is returned when a selfie's best match exceeds the
	// clustering distance threshold, or no Person clusters exist yet.
	ErrNoClusterMatch = errors.New("no matching person cluster")

	// ErrAlreadyEnrolled is returned when the matched Person already has an
	// Enrollment on file.
	ErrAlreadyEnrolled = errors.New("person already enrolled")
)
