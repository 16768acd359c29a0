// Package worker runs the fixed-size pool of photo-processing workers:
// each one pulls a job, runs it through the Processor, persists faces,
// assigns clusters, routes the output, and enqueues uploads.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kozaktomas/eventphoto/internal/clusterer"
	"github.com/kozaktomas/eventphoto/internal/engineerr"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
	"github.com/kozaktomas/eventphoto/internal/processor"
	"github.com/kozaktomas/eventphoto/internal/router"
	"github.com/rs/zerolog"
)

// canProcessPollInterval bounds how long a worker blocks in one
// CanProcess call before re-checking ctx cancellation; the coordinator
// itself wakes waiters immediately on a phase change, so this is just a
// cancellation-responsiveness ceiling, not a polling delay in the common case.
const canProcessPollInterval = 5 * time.Second

// Job is one queued photo awaiting processing.
type Job struct {
	PhotoID      int64
	OriginalPath string
}

// PhaseGate is the subset of *phase.Coordinator a worker needs.
type PhaseGate interface {
	CanProcess(ctx context.Context, timeout time.Duration) bool
	OnProcessed()
}

// Store is the subset of *store.Store a worker needs.
type Store interface {
	SetProcessing(ctx context.Context, photoID int64) error
	SetCompleted(ctx context.Context, photoID int64, processedPath, thumbPath string, faceCount int) error
	SetError(ctx context.Context, photoID int64) error
	CreateFace(ctx context.Context, photoID int64, bboxX, bboxY, bboxW, bboxH float64, embedding []float32, confidence float64) (int64, error)
	AssignFace(ctx context.Context, faceID int64, personID *int64) error
	DistinctPersonsOfPhoto(ctx context.Context, photoID int64) ([]int64, error)
	PersonName(ctx context.Context, personID int64) (name string, err error)
	EnqueueUpload(ctx context.Context, photoID int64, localPath, relativeTo string) (int64, error)
}

// Pool is a fixed-size worker pool, grounded on the corpus's
// channel+semaphore+WaitGroup fan-out idiom but adapted to a long-running
// pull loop instead of a one-shot batch.
type Pool struct {
	jobs       <-chan Job
	size       int
	gate       PhaseGate
	store      Store
	clusterer  *clusterer.Clusterer
	router     *router.Router
	analyzerFn faceanalyzer.Factory
	procCfg    processor.Config
	outputDir  string
	eventRoot  string
	log        zerolog.Logger
}

// New constructs a Pool. analyzerFn is called once per worker goroutine
// (thread-affine FaceAnalyzer instances, per spec.md §4.2).
func New(jobs <-chan Job, size int, gate PhaseGate, st Store, cl *clusterer.Clusterer, rt *router.Router,
	analyzerFn faceanalyzer.Factory, procCfg processor.Config, outputDir, eventRoot string, log zerolog.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		jobs: jobs, size: size, gate: gate, store: st, clusterer: cl, router: rt,
		analyzerFn: analyzerFn, procCfg: procCfg, outputDir: outputDir, eventRoot: eventRoot,
		log: log.With().Str("component", "worker").Logger(),
	}
}

// Run starts size worker goroutines and blocks until ctx is canceled and
// every worker has drained its current job.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runOne(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) runOne(ctx context.Context, id int) {
	log := p.log.With().Int("worker_id", id).Logger()

	analyzer, err := p.analyzerFn()
	if err != nil {
		log.Error().Err(err).Msg("failed to construct face analyzer for worker")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			for !p.gate.CanProcess(ctx, canProcessPollInterval) {
				if ctx.Err() != nil {
					return
				}
			}
			p.handle(ctx, job, analyzer, log)
			p.gate.OnProcessed()
		}
	}
}

func (p *Pool) handle(ctx context.Context, job Job, analyzer faceanalyzer.FaceAnalyzer, log zerolog.Logger) {
	log = log.With().Int64("photo_id", job.PhotoID).Logger()

	if err := p.store.SetProcessing(ctx, job.PhotoID); err != nil {
		p.fail(ctx, job, log, err)
		return
	}

	result, err := processor.Process(ctx, job.OriginalPath, job.PhotoID, p.outputDir, p.procCfg, analyzer)
	if err != nil {
		p.fail(ctx, job, log, err)
		return
	}

	faceCount := len(result.Faces)
	var personIDs []int64
	for _, f := range result.Faces {
		faceID, err := p.store.CreateFace(ctx, job.PhotoID, f.BBoxX, f.BBoxY, f.BBoxWidth, f.BBoxHeight, f.Embedding, f.Confidence)
		if err != nil {
			p.fail(ctx, job, log, err)
			return
		}
		assignment, err := p.clusterer.Assign(ctx, f.Embedding)
		if err != nil {
			p.fail(ctx, job, log, err)
			return
		}
		if err := p.store.AssignFace(ctx, faceID, &assignment.PersonID); err != nil {
			p.fail(ctx, job, log, err)
			return
		}
		personIDs = appendUnique(personIDs, assignment.PersonID)
	}

	if err := p.store.SetCompleted(ctx, job.PhotoID, result.ProcessedPath, result.ThumbPath, faceCount); err != nil {
		p.fail(ctx, job, log, err)
		return
	}

	destinations, err := p.router.Route(ctx, result.ProcessedPath, job.PhotoID, personIDs, func(ctx context.Context, personID int64) (string, error) {
		return p.store.PersonName(ctx, personID)
	})
	if err != nil {
		p.fail(ctx, job, log, err)
		return
	}

	for _, dest := range destinations {
		if !dest.Created {
			continue
		}
		relTo, relErr := relativePath(p.eventRoot, dest.Path)
		if relErr != nil {
			log.Error().Err(relErr).Str("path", dest.Path).Msg("computing upload relative path")
			continue
		}
		if _, err := p.store.EnqueueUpload(ctx, job.PhotoID, dest.Path, relTo); err != nil {
			log.Error().Err(err).Str("path", dest.Path).Msg("enqueuing upload")
		}
	}
}

func (p *Pool) fail(ctx context.Context, job Job, log zerolog.Logger, cause error) {
	log.Error().Err(cause).Msg("processing failed")
	if err := p.store.SetError(ctx, job.PhotoID); err != nil {
		log.Error().Err(err).Msg("failed to mark photo errored")
	}
	if p.router != nil {
		if _, err := p.router.RouteError(job.OriginalPath, job.PhotoID); err != nil {
			log.Error().Err(err).Msg("failed to move original to Admin/Errors")
		}
	}
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func relativePath(base, target string) (string, error) {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", engineerr.ErrRouteFailed, err)
	}
	return rel, nil
}
