// Package watcher turns new files appearing in the drop zone into jobs
// exactly once, deduplicated by content hash.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Store is the subset of *store.Store the watcher needs.
type Store interface {
	PhotoExists(ctx context.Context, hash string) (bool, error)
	CreatePhoto(ctx context.Context, hash, originalPath string) (int64, error)
}

// Job is pushed onto the job queue for a newly discovered photo.
type Job struct {
	PhotoID      int64
	OriginalPath string
	Hash         string
}

// Config tunes the watcher's scan cadence and readiness check.
type Config struct {
	EventPollInterval time.Duration // fast poll, the "event-driven" half
	ScanInterval      time.Duration // slow, exhaustive re-listing
	StableFor         time.Duration // not read by the readiness check, which compares sizes between consecutive scans
	SupportedExts     []string
}

// Watcher polls the drop zone on two cadences — a fast poll standing in
// for OS-level create/move/modify notifications (no full pack repo uses
// an OS file-event library; this is the idiom the domain stack actually
// offers) and a slow exhaustive re-scan that catches anything the fast
// poll's directory listing missed — and turns each ready, unseen file
// into a Photo.
type Watcher struct {
	dropZone string
	store    Store
	cfg      Config
	jobs     chan<- Job
	log      zerolog.Logger

	seen map[string]int64 // path -> last-seen size, to detect "ready" files
}

// New constructs a Watcher that pushes discovered jobs onto jobs.
func New(dropZone string, store Store, cfg Config, jobs chan<- Job, log zerolog.Logger) *Watcher {
	if cfg.EventPollInterval <= 0 {
		cfg.EventPollInterval = 2 * time.Second
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 30 * time.Second
	}
	if cfg.StableFor <= 0 {
		cfg.StableFor = 2 * time.Second
	}
	return &Watcher{
		dropZone: dropZone, store: store, cfg: cfg, jobs: jobs,
		log:  log.With().Str("component", "watcher").Logger(),
		seen: make(map[string]int64),
	}
}

// Run blocks until ctx is canceled, scanning the drop zone on both cadences.
func (w *Watcher) Run(ctx context.Context) {
	fastTicker := time.NewTicker(w.cfg.EventPollInterval)
	defer fastTicker.Stop()
	slowTicker := time.NewTicker(w.cfg.ScanInterval)
	defer slowTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fastTicker.C:
			w.scanOnce(ctx)
		case <-slowTicker.C:
			w.scanOnce(ctx)
		}
	}
}

func (w *Watcher) scanOnce(ctx context.Context) {
	entries, err := os.ReadDir(w.dropZone)
	if err != nil {
		w.log.Error().Err(err).Str("drop_zone", w.dropZone).Msg("listing drop zone")
		return
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dropZone, e.Name())
		if !w.supportedExtension(path) {
			continue
		}
		w.handleCandidate(ctx, path)
	}
}

func (w *Watcher) supportedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range w.cfg.SupportedExts {
		if ext == supported {
			return true
		}
	}
	return false
}

// handleCandidate implements the five-step procedure: readiness check,
// hash, existence check, Photo creation, job push.
func (w *Watcher) handleCandidate(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return // file vanished between listing and stat; next scan will retry if it reappears
	}

	if !w.isReady(path, info.Size()) {
		return
	}
	defer delete(w.seen, path)

	hash, err := hashFile(path)
	if err != nil {
		w.log.Error().Err(err).Str("path", path).Msg("hashing candidate file")
		return
	}

	exists, err := w.store.PhotoExists(ctx, hash)
	if err != nil {
		w.log.Error().Err(err).Str("path", path).Msg("checking photo existence")
		return
	}
	if exists {
		return
	}

	id, err := w.store.CreatePhoto(ctx, hash, path)
	if err != nil {
		w.log.Error().Err(err).Str("path", path).Msg("creating photo")
		return
	}

	select {
	case w.jobs <- Job{PhotoID: id, OriginalPath: path, Hash: hash}:
	case <-ctx.Done():
	}
}

// isReady reports whether path's size has been stable since the previous
// scan; the first time a path is seen it always reports not-ready so at
// least one more scan passes before it is considered settled.
func (w *Watcher) isReady(path string, size int64) bool {
	prev, known := w.seen[path]
	w.seen[path] = size
	return known && prev == size
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
