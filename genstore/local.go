package genstore

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	gen     uint64
	touched time.Time // last delivery or ack
}

// LocalGenStore keeps generations in-process (default).
// An optional sweep prunes mailboxes that saw no delivery or ack within the
// retention window; a pruned mailbox reads as generation 0 and its stored
// entry, if any, is dropped on the next Get.
type LocalGenStore struct {
	mu   sync.RWMutex
	gens map[string]counter

	retention time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

// NewLocalGenStore starts the sweep when both durations are positive.
func NewLocalGenStore(cleanupInterval, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{
		gens:      make(map[string]counter),
		retention: retention,
	}
	if cleanupInterval <= 0 || retention <= 0 {
		return s
	}
	s.ticker = time.NewTicker(cleanupInterval)
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.sweep()
	return s
}

func (s *LocalGenStore) sweep() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.Cleanup(s.retention)
		case <-s.stopCh:
			return
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[k].gen, nil
}

// SnapshotMany reads the whole inbox under one read lock.
func (s *LocalGenStore) SnapshotMany(_ context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	s.mu.RLock()
	for _, k := range ks {
		out[k] = s.gens[k].gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bumpLocked(k), nil
}

func (s *LocalGenStore) CompareAndBump(_ context.Context, k string, observed uint64) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.gens[k].gen; cur != observed {
		return cur, false, nil
	}
	return s.bumpLocked(k), true, nil
}

func (s *LocalGenStore) bumpLocked(k string) uint64 {
	c := s.gens[k]
	c.gen++
	c.touched = time.Now()
	s.gens[k] = c
	return c.gen
}

func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, c := range s.gens {
		if c.touched.Before(cutoff) {
			delete(s.gens, k)
		}
	}
	s.mu.Unlock()
}

// Len reports how many mailboxes currently hold a counter.
func (s *LocalGenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gens)
}

// Close stops the sweep. Safe to call more than once.
func (s *LocalGenStore) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh == nil {
			return
		}
		s.ticker.Stop()
		close(s.stopCh)
		s.wg.Wait()
	})
	return nil
}
