package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *stubStore) Append(_ context.Context, rec Record) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *stubStore) ListByEntity(_ context.Context, entityID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.EntityID == entityID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubStore) ListRecent(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[len(s.records)-limit:], nil
}

type stubSink struct {
	mu        sync.Mutex
	published []Record
	failures  int
	err       error
}

func (s *stubSink) Publish(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return s.err
	}
	s.published = append(s.published, rec)
	return nil
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func TestEmitAssignsIdentityAndTimestamp(t *testing.T) {
	store := &stubStore{}
	p := NewPublisher(store)

	err := p.Emit(context.Background(), Record{Action: ActionOverrideApplied, EntityID: "s-1"})
	require.NoError(t, err)

	require.Len(t, store.records, 1)
	assert.NotEqual(t, uuid.Nil, store.records[0].ID)
	assert.False(t, store.records[0].Timestamp.IsZero())
}

func TestEmitFailsClosedOnStoreError(t *testing.T) {
	p := NewPublisher(&stubStore{err: errors.New("disk full")})

	err := p.Emit(context.Background(), Record{Action: ActionOverrideApplied})
	assert.Error(t, err)
}

func TestEmitForwardNeverBlocks(t *testing.T) {
	store := &stubStore{}
	forward := make(chan Record, 1)
	p := NewPublisher(store, WithForward(forward))

	// Fill the channel; the second emit must still store and return.
	require.NoError(t, p.Emit(context.Background(), Record{Action: ActionRuleSetActivated}))
	require.NoError(t, p.Emit(context.Background(), Record{Action: ActionRuleSetLocked}))
	assert.Len(t, store.records, 2)
	assert.Len(t, forward, 1)
}

func TestWorkerDeliversToSink(t *testing.T) {
	sink := &stubSink{}
	inbox := make(chan Record, 4)
	worker := NewWorker(sink, inbox, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	inbox <- Record{ID: uuid.New(), Action: ActionRuleSetActivated}
	inbox <- Record{ID: uuid.New(), Action: ActionRuleSetSuperseded}

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerSurvivesSinkFailure(t *testing.T) {
	sink := &stubSink{failures: 1, err: errors.New("broker unreachable")}
	inbox := make(chan Record, 2)
	worker := NewWorker(sink, inbox, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	// Fail-open: the first publish fails, the worker keeps draining.
	inbox <- Record{ID: uuid.New(), Action: ActionOverrideApplied}
	inbox <- Record{ID: uuid.New(), Action: ActionOverrideApplied}
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
