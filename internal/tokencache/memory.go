package tokencache

import (
	"context"
	"sync"
	"time"

	"campusfix/internal/observability"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded map. Expired entries are invisible to Take
// and are removed by a periodic sweep between Startup and Shutdown.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	sweepInterval time.Duration
	logger        *observability.Logger
	stop          chan struct{}
	done          chan struct{}
}

// NewMemoryStore creates an empty store
func NewMemoryStore(sweepInterval time.Duration, logger *observability.Logger) *MemoryStore {
	return &MemoryStore{
		entries:       make(map[string]entry),
		now:           time.Now,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// WithClock replaces the time source
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Put stores value under key until ttl elapses, replacing any previous value
func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Take returns and removes the value for key
func (s *MemoryStore) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[key]
	if !found {
		return "", false, nil
	}
	delete(s.entries, key)
	if !s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Len counts stored entries, including expired ones not yet swept
func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Sweep drops expired entries and returns how many were removed
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Startup starts the background sweep
func (s *MemoryStore) Startup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil || s.sweepInterval <= 0 {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.sweepLoop(context.WithoutCancel(ctx), s.stop, s.done)
	return nil
}

func (s *MemoryStore) sweepLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug(ctx, "Swept expired tokens", map[string]interface{}{"removed": removed})
			}
		}
	}
}

// Shutdown stops the sweep and waits for it to exit
func (s *MemoryStore) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsReady always reports true
func (s *MemoryStore) IsReady() bool { return true }
