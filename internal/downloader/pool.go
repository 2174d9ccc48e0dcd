// Package downloader runs photo downloads on a fixed set of workers.
package downloader

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	errs "photobackup/pkg/errors"
	"photobackup/pkg/logger"
)

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("worker pool is stopped")

// DownloadJob represents a single photo to fetch and store
type DownloadJob struct {
	// Index is the position of the photo in its album feed
	Index int
	URL   string
	Path  string
	Album string
	// Err marks a photo that cannot be fetched; the job fails without a request
	Err error
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job     DownloadJob
	Success bool
	// Skipped is set when the destination already existed
	Skipped bool
	// Cancelled is set for jobs that never started because the context ended
	Cancelled bool
	Error     error
	Duration  time.Duration
	Size      int64
}

// PhotoFetcher opens photo bodies
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, url string) (io.ReadCloser, error)
}

// PhotoStorage persists photo bodies
type PhotoStorage interface {
	Exists(path string) bool
	Save(r io.Reader, path string) (int64, error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers   int
	jobQueue     chan DownloadJob
	resultQueue  chan DownloadResult
	group        errgroup.Group
	ctx          context.Context
	fetcher      PhotoFetcher
	storage      PhotoStorage
	skipExisting bool
	logger       logger.Logger

	mu      sync.Mutex
	stopped bool
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher PhotoFetcher,
	storage PhotoStorage,
	skipExisting bool,
	log logger.Logger,
) *WorkerPool {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:   numWorkers,
		jobQueue:     make(chan DownloadJob, numWorkers*2),
		resultQueue:  make(chan DownloadResult, numWorkers),
		ctx:          ctx,
		fetcher:      fetcher,
		storage:      storage,
		skipExisting: skipExisting,
		logger:       log,
	}
}

// Start launches the workers. Results must be consumed until the channel
// returned by Results is closed.
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		id := i
		wp.group.Go(func() error {
			wp.worker(id)
			return nil
		})
	}
}

// Stop closes the job queue, waits for queued jobs to drain and closes the
// result channel.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	_ = wp.group.Wait()
	close(wp.resultQueue)

	wp.logger.Debug("worker pool stopped")
}

// Submit queues a job. It blocks while the queue is full and fails once the
// pool's context is done.
func (wp *WorkerPool) Submit(job DownloadJob) error {
	if err := wp.ctx.Err(); err != nil {
		return err
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	for job := range wp.jobQueue {
		var result DownloadResult
		if wp.ctx.Err() != nil {
			result = DownloadResult{Job: job, Cancelled: true, Error: wp.ctx.Err()}
		} else {
			result = wp.processJob(job, id)
		}
		wp.resultQueue <- result
	}
}

// processJob handles a single download job
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}

	fields := map[string]interface{}{
		"worker_id": workerID,
		"album":     job.Album,
		"index":     job.Index,
		"url":       job.URL,
	}

	if job.Err != nil {
		result.Error = job.Err
		result.Duration = time.Since(start)
		return result
	}

	if wp.skipExisting && wp.storage.Exists(job.Path) {
		wp.logger.DebugWithFields("photo already on disk", fields)
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	body, err := wp.fetcher.FetchPhoto(wp.ctx, job.URL)
	if err != nil {
		result.Error = errs.Wrap(errs.ErrorTypeItemDownload, err, "fetch %s", job.URL)
		result.Duration = time.Since(start)
		return result
	}

	n, err := wp.storage.Save(body, job.Path)
	body.Close()
	result.Size = n
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = errs.Wrap(errs.ErrorTypeItemDownload, err, "save %s", job.Path)
		return result
	}

	result.Success = true
	fields["size"] = n
	fields["duration"] = result.Duration
	wp.logger.DebugWithFields("photo saved", fields)
	return result
}
