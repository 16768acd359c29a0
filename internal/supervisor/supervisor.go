// Package supervisor owns the engine's lifecycle: startup recovery,
// wiring the watcher/worker pool/upload queue together, periodic health
// sweeps, and an orderly shutdown.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kozaktomas/eventphoto/internal/clusterer"
	"github.com/kozaktomas/eventphoto/internal/config"
	"github.com/kozaktomas/eventphoto/internal/constants"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
	"github.com/kozaktomas/eventphoto/internal/phase"
	"github.com/kozaktomas/eventphoto/internal/processor"
	"github.com/kozaktomas/eventphoto/internal/remotestore"
	"github.com/kozaktomas/eventphoto/internal/router"
	"github.com/kozaktomas/eventphoto/internal/store"
	"github.com/kozaktomas/eventphoto/internal/uploadqueue"
	"github.com/kozaktomas/eventphoto/internal/watcher"
	"github.com/kozaktomas/eventphoto/internal/worker"
	"github.com/rs/zerolog"
)

const (
	healthSweepInterval = 2 * time.Minute
	jobQueueDepth       = 256
	shutdownDeadline    = 30 * time.Second
)

// Supervisor owns every long-running subsystem's lifecycle.
type Supervisor struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *store.Store

	gate     *phase.Coordinator
	cl       *clusterer.Clusterer
	watch    *watcher.Watcher
	pool     *worker.Pool
	uploadQ  *uploadqueue.Queue
	jobs     chan watcher.Job
	poolJobs chan worker.Job
}

// New wires every subsystem but does not start any of them; call Run to
// start and block until ctx is canceled.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Supervisor, error) {
	dropZone := filepath.Join(cfg.Paths.EventRoot, constants.DirIncoming)
	processedDir := filepath.Join(cfg.Paths.EventRoot, constants.DirProcessed)
	for _, dir := range []string{dropZone, processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	st, err := store.Open(ctx, cfg.Paths.DBPath, 5*time.Second, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gate := phase.New(cfg.Pipeline.ProcessBatchSize)
	cl := clusterer.New(st, cfg.Pipeline.ClusterThreshold, log)
	rt := router.New(cfg.Paths.EventRoot, cfg.Pipeline.UseHardlinks)

	analyzerFactory := func() (faceanalyzer.FaceAnalyzer, error) {
		return faceanalyzer.NewHTTPAnalyzer(
			cfg.Analyzer.BaseURL,
			time.Duration(cfg.Analyzer.TimeoutConnectSeconds)*time.Second,
			time.Duration(cfg.Analyzer.TimeoutReadSeconds)*time.Second,
		)
	}

	var remote remotestore.RemoteStore
	if cfg.Remote.CredentialsFile != "" {
		drive, err := remotestore.NewDriveStore(ctx, cfg.Remote.CredentialsFile, cfg.Remote.RootFolderID)
		if err != nil {
			return nil, fmt.Errorf("initializing remote store: %w", err)
		}
		remote = drive
	} else {
		log.Warn().Msg("no remote credentials configured; uploads will be skipped")
		remote = remotestore.NewFake()
	}

	jobs := make(chan watcher.Job, jobQueueDepth)
	poolJobs := make(chan worker.Job, jobQueueDepth)

	watch := watcher.New(dropZone, st, watcher.Config{
		EventPollInterval: 2 * time.Second,
		ScanInterval:      time.Duration(cfg.Pipeline.ScanInterval) * time.Second,
		StableFor:         2 * time.Second,
		SupportedExts:     cfg.Pipeline.SupportedExtensions,
	}, jobs, log)

	pool := worker.New(poolJobs, cfg.Pipeline.WorkerCount, gate, st, cl, rt, analyzerFactory,
		procConfig(cfg), processedDir, cfg.Paths.EventRoot, log)

	uploadQ := uploadqueue.New(uploadqueue.StoreAdapter{Store: st}, remote, gate,
		cfg.Upload.BatchSize, cfg.Upload.MaxRetries,
		time.Duration(cfg.Upload.RetryBaseDelaySeconds)*time.Second,
		time.Duration(cfg.Upload.StuckAfterSeconds)*time.Second, log)

	return &Supervisor{
		cfg: cfg, log: log.With().Str("component", "supervisor").Logger(), store: st,
		gate: gate, cl: cl, watch: watch, pool: pool, uploadQ: uploadQ, jobs: jobs, poolJobs: poolJobs,
	}, nil
}

// Run performs startup recovery, re-enqueues outstanding work, starts every
// subsystem, and blocks running periodic health sweeps until ctx is
// canceled, at which point it shuts everything down within
// shutdownDeadline.
func (s *Supervisor) Run(ctx context.Context) error {
	report, err := store.Recover(ctx, s.store, s.log)
	if err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}
	s.log.Info().
		Int("photos_requeued", report.PhotosRequeued).
		Int("orphan_faces_found", report.OrphanFacesFound).
		Int("persons_updated", report.PersonsUpdated).
		Int("persons_deleted", report.PersonsDeleted).
		Msg("startup recovery complete")

	if err := s.cl.Refresh(ctx); err != nil {
		return fmt.Errorf("loading person clusters: %w", err)
	}

	if err := s.reenqueuePending(ctx); err != nil {
		return fmt.Errorf("re-enqueuing pending photos: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); s.bridgeWatcherToPool(runCtx) }()
	go func() { defer wg.Done(); s.watch.Run(runCtx) }()
	go func() { defer wg.Done(); s.pool.Run(runCtx) }()
	go func() { defer wg.Done(); s.uploadQ.Run(runCtx) }()

	// Blocks running periodic sweeps until the caller cancels ctx (the
	// shutdown signal). Canceling runCtx then stops the watcher and poison-
	// pills the worker pool and upload queue in one step, since every
	// subsystem's Run already observes ctx.Done() at its blocking points.
	s.healthSweepLoop(ctx)
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(shutdownDeadline):
		s.log.Warn().Msg("shutdown deadline exceeded; some subsystems may not have drained cleanly")
	}
	return nil
}

// bridgeWatcherToPool translates watcher.Job into worker.Job so the two
// packages stay decoupled from each other's types.
func (s *Supervisor) bridgeWatcherToPool(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-s.jobs:
			if !ok {
				return
			}
			select {
			case s.poolJobs <- worker.Job{PhotoID: j.PhotoID, OriginalPath: j.OriginalPath}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// reenqueuePending pushes every `pending` Photo whose original file still
// exists back onto the job queue, per spec.md §4.10's startup procedure.
// A Photo whose original vanished while the engine was down is left
// pending rather than requeued; it will surface in the stats command
// instead of cycling forever through a failing Process call.
func (s *Supervisor) reenqueuePending(ctx context.Context) error {
	pending, err := s.store.PendingPhotos(ctx)
	if err != nil {
		return err
	}
	requeued := 0
	for _, p := range pending {
		if _, err := os.Stat(p.OriginalPath); err != nil {
			s.log.Warn().Str("path", p.OriginalPath).Msg("skipping re-enqueue: original file missing")
			continue
		}
		select {
		case s.poolJobs <- worker.Job{PhotoID: p.ID, OriginalPath: p.OriginalPath}:
			requeued++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.log.Info().Int("count", requeued).Int("skipped", len(pending)-requeued).Msg("re-enqueued pending photos")
	return nil
}

// healthSweepLoop runs the periodic stuck-job reset and idle-flush checks
// until ctx is canceled.
func (s *Supervisor) healthSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(healthSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Supervisor) sweep(ctx context.Context) {
	stuckAfter := time.Duration(s.cfg.Pipeline.StuckProcessingAfter) * time.Second
	reset, err := s.store.ResetStuckProcessing(ctx, stuckAfter)
	if err != nil {
		s.log.Error().Err(err).Msg("resetting stuck processing photos")
	} else if reset > 0 {
		s.log.Warn().Int64("count", reset).Msg("reset stuck processing photos back to pending")
	}

	s.gate.FlushIfIdle()

	phaseNow, inBatch, batchesDone := s.gate.Snapshot()
	counts, err := s.store.PhotoCounts(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reading photo counts")
		return
	}
	s.log.Info().
		Str("phase", phaseNow.String()).
		Int("in_batch", inBatch).
		Int64("batches_done", batchesDone).
		Interface("photo_counts", counts).
		Msg("progress snapshot")
}

func procConfig(cfg *config.Config) processor.Config {
	return processor.Config{
		MaxSize:     cfg.Pipeline.MaxImageSize,
		ThumbSize:   cfg.Pipeline.ThumbnailSize,
		JPEGQuality: 90,
		DryRun:      cfg.Pipeline.DryRun,
	}
}
