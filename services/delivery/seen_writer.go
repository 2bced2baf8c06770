package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

// SeenStore marks alerts as seen
type SeenStore interface {
	MarkSeen(ctx context.Context, id int64) error
}

// WriterConfig holds configuration for the SeenWriter
type WriterConfig struct {
	BufferSize   int           // Size of the pending write channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Bound on each store write
}

// DefaultWriterConfig returns the default configuration
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BufferSize:   256,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// SeenWriter marks alerts seen in the background so the presentation
// loop never waits on the store. Writes are fire-and-forget.
type SeenWriter struct {
	store        SeenStore
	logger       *zap.Logger
	ids          chan int64
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	written int64
	failed  int64
	statsMu sync.Mutex
}

// NewSeenWriter creates a new SeenWriter instance
func NewSeenWriter(store SeenStore, logger *zap.Logger, cfg WriterConfig) *SeenWriter {
	def := DefaultWriterConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	return &SeenWriter{
		store:        store,
		logger:       logger,
		ids:          make(chan int64, cfg.BufferSize),
		workerCount:  cfg.WorkerCount,
		bufferSize:   cfg.BufferSize,
		writeTimeout: cfg.WriteTimeout,
	}
}

// Start starts the background workers
func (w *SeenWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("seen writer already started")
	}

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}

	w.started = true
	w.logger.Info("started seen writer",
		zap.Int("worker_count", w.workerCount),
		zap.Int("buffer_size", w.bufferSize))

	return nil
}

// Running reports whether Start was called and Stop was not
func (w *SeenWriter) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started && !w.stopped
}

// Stop stops accepting writes and waits for pending ones to finish
func (w *SeenWriter) Stop(timeout time.Duration) error {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("seen writer not running")
	}
	w.stopped = true
	w.logger.Info("stopping seen writer", zap.Int("pending_writes", len(w.ids)))
	close(w.ids)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("seen writer stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("seen writer stop timeout after %v", timeout)
	}
}

// MarkSeen queues a write and returns immediately. It fails when the
// buffer is full or the writer is not running.
func (w *SeenWriter) MarkSeen(id int64) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.started || w.stopped {
		return fmt.Errorf("seen writer not running")
	}

	select {
	case w.ids <- id:
		return nil
	default:
		w.logger.Warn("seen writer buffer full, dropping write", zap.Int64("alert_id", id))
		return fmt.Errorf("seen writer buffer full")
	}
}

func (w *SeenWriter) worker(id int) {
	defer w.wg.Done()

	w.logger.Debug("seen writer worker started", zap.Int("worker_id", id))

	for alertID := range w.ids {
		err := w.write(alertID)
		w.statsMu.Lock()
		if err != nil {
			w.failed++
		} else {
			w.written++
		}
		w.statsMu.Unlock()

		if err != nil {
			w.logger.Error("failed to mark alert seen",
				zap.Int("worker_id", id),
				zap.Int64("alert_id", alertID),
				zap.Error(err))
		}
	}

	w.logger.Debug("seen writer worker stopped", zap.Int("worker_id", id))
}

func (w *SeenWriter) write(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	err := w.store.MarkSeen(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		// deleted meanwhile; nothing left to mark
		w.logger.Debug("alert vanished before mark seen", zap.Int64("alert_id", id))
		return nil
	}
	return err
}

// Stats represents seen writer statistics
type Stats struct {
	BufferSize    int
	PendingWrites int
	WorkerCount   int
	Written       int64
	Failed        int64
	Started       bool
}

// GetStats returns statistics about the writer
func (w *SeenWriter) GetStats() Stats {
	w.mu.RLock()
	started := w.started && !w.stopped
	w.mu.RUnlock()

	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	return Stats{
		BufferSize:    w.bufferSize,
		PendingWrites: len(w.ids),
		WorkerCount:   w.workerCount,
		Written:       w.written,
		Failed:        w.failed,
		Started:       started,
	}
}
