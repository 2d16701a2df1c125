package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
	"archivescraper/pkg/storage"
)

// Job is one media file to fetch and store
type Job struct {
	Key   storage.MediaKey
	Media models.MediaReference
}

// Result represents the result of a download job
type Result struct {
	Job      Job
	Path     string
	Written  bool
	Error    error
	Duration time.Duration
	Size     int
}

// Fetcher downloads a media body. Rate limiting and retries are its concern.
type Fetcher interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Store persists media bytes
type Store interface {
	Path(key storage.MediaKey, ref models.MediaReference) (string, error)
	IsStored(key storage.MediaKey, ref models.MediaReference) bool
	Store(key storage.MediaKey, ref models.MediaReference, data []byte) (bool, error)
}

// Download checks the store, fetches the media if it is missing and writes
// it. A file that already exists is reported as not written without any
// network call, and a key the store refuses is never fetched.
func Download(ctx context.Context, fetcher Fetcher, store Store, job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	path, err := store.Path(job.Key, job.Media)
	if err != nil {
		result.Error = fmt.Errorf("invalid media key: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	result.Path = path

	if store.IsStored(job.Key, job.Media) {
		result.Duration = time.Since(start)
		return result
	}

	data, err := fetcher.GetBytes(ctx, job.Media.URL)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	result.Size = len(data)

	written, err := store.Store(job.Key, job.Media, data)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
	}
	result.Written = written
	result.Duration = time.Since(start)
	return result
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     Fetcher
	store       Store
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. Cancelling ctx stops
// workers after their current job.
func NewWorkerPool(ctx context.Context, numWorkers int, fetcher Fetcher, store Store, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		store:       store,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	if err := wp.ctx.Err(); err != nil {
		return fmt.Errorf("worker pool is shutting down: %w", err)
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			// drain so Submit callers blocked on a full queue are released
			continue
		}

		result := Download(wp.ctx, wp.fetcher, wp.store, job)
		if result.Error != nil {
			wp.logger.WithError(result.Error).DebugWithFields("Worker job failed", map[string]interface{}{
				"worker_id": id,
				"thread_id": job.Key.ThreadID,
				"post_id":   job.Key.PostID,
			})
		}

		wp.resultQueue <- result
	}
}
