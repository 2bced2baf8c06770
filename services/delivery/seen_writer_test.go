package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/repositories/repotest"
	"go.uber.org/zap"
)

func TestSeenWriter_StartStop(t *testing.T) {
	repo := new(repotest.NotificationRepository)
	w := NewSeenWriter(repo, zap.NewNop(), WriterConfig{BufferSize: 10, WorkerCount: 2})

	assert.False(t, w.Running())
	require.NoError(t, w.Start())
	assert.Error(t, w.Start())
	assert.True(t, w.GetStats().Started)
	assert.True(t, w.Running())

	require.NoError(t, w.Stop(time.Second))
	assert.Error(t, w.Stop(time.Second))
	assert.False(t, w.GetStats().Started)
	assert.False(t, w.Running())
}

func TestSeenWriter_NotStarted(t *testing.T) {
	w := NewSeenWriter(new(repotest.NotificationRepository), zap.NewNop(), DefaultWriterConfig())

	assert.Error(t, w.MarkSeen(1))
	assert.Error(t, w.Stop(time.Second))
}

func TestSeenWriter_WritesEveryID(t *testing.T) {
	repo := new(repotest.NotificationRepository)
	repo.On("MarkSeen", mock.Anything, mock.AnythingOfType("int64")).Return(nil)

	w := NewSeenWriter(repo, zap.NewNop(), WriterConfig{BufferSize: 100, WorkerCount: 4})
	require.NoError(t, w.Start())

	for id := int64(1); id <= 20; id++ {
		require.NoError(t, w.MarkSeen(id))
	}
	require.NoError(t, w.Stop(5*time.Second))

	repo.AssertNumberOfCalls(t, "MarkSeen", 20)
	for id := int64(1); id <= 20; id++ {
		repo.AssertCalled(t, "MarkSeen", mock.Anything, id)
	}
	stats := w.GetStats()
	assert.Equal(t, int64(20), stats.Written)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestSeenWriter_Failures(t *testing.T) {
	repo := new(repotest.NotificationRepository)
	repo.On("MarkSeen", mock.Anything, int64(1)).Return(fmt.Errorf("notification 1: %w", repositories.ErrNotFound))
	repo.On("MarkSeen", mock.Anything, int64(2)).Return(errors.New("connection reset"))

	w := NewSeenWriter(repo, zap.NewNop(), WriterConfig{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, w.Start())
	require.NoError(t, w.MarkSeen(1))
	require.NoError(t, w.MarkSeen(2))
	require.NoError(t, w.Stop(5*time.Second))

	stats := w.GetStats()
	assert.Equal(t, int64(1), stats.Written)
	assert.Equal(t, int64(1), stats.Failed)
}

// blockingStore holds every write until released
type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (s *blockingStore) MarkSeen(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSeenWriter_BufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	w := NewSeenWriter(store, zap.NewNop(), WriterConfig{BufferSize: 1, WorkerCount: 1, WriteTimeout: time.Minute})
	require.NoError(t, w.Start())

	require.NoError(t, w.MarkSeen(1))
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, w.MarkSeen(2))
	assert.ErrorContains(t, w.MarkSeen(3), "buffer full")

	close(store.release)
	require.NoError(t, w.Stop(time.Second))
}

func TestSeenWriter_WriteTimeout(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	w := NewSeenWriter(store, zap.NewNop(), WriterConfig{BufferSize: 1, WorkerCount: 1, WriteTimeout: 10 * time.Millisecond})
	require.NoError(t, w.Start())

	require.NoError(t, w.MarkSeen(1))
	require.NoError(t, w.Stop(time.Second))
	assert.Equal(t, int64(1), w.GetStats().Failed)
}

func TestSeenWriter_StopTimeout(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	w := NewSeenWriter(store, zap.NewNop(), WriterConfig{BufferSize: 1, WorkerCount: 1, WriteTimeout: time.Minute})
	require.NoError(t, w.Start())
	require.NoError(t, w.MarkSeen(1))

	err := w.Stop(20 * time.Millisecond)
	assert.ErrorContains(t, err, "timeout")
	close(store.release)
}
