package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
)

const (
	minSweepInterval = time.Second
	loadTimeout      = 2 * time.Second
)

// CartService holds the single live cart of every active cart session.
type CartService struct {
	store   cache.CartCache
	mirror  *cart.Mirror
	log     *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*cart.Session
	sfg      singleflight.Group // hydrate each session once

	stopSweep chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewCartService(store cache.CartCache, log *zap.Logger, idleTTL time.Duration) *CartService {
	s := &CartService{
		store:     store,
		mirror:    cart.NewMirror(store, log),
		log:       log,
		idleTTL:   idleTTL,
		now:       time.Now,
		sessions:  make(map[string]*cart.Session),
		stopSweep: make(chan struct{}),
	}

	if idleTTL > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

// Session returns the live cart of sessionID, hydrating it from the store on first use.
func (s *CartService) Session(ctx context.Context, sessionID string) *cart.Session {
	if sess := s.lookup(sessionID); sess != nil {
		return sess
	}

	v, _, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if sess := s.lookup(sessionID); sess != nil {
			return sess, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		sess := cart.NewSession(sessionID, s.load(loadCtx, sessionID), s.mirror)

		s.mu.Lock()
		s.sessions[sessionID] = sess
		n := len(s.sessions)
		s.mu.Unlock()

		metrics.SetLiveCartSessions(n)
		return sess, nil
	})
	return v.(*cart.Session)
}

// Delete drops the live cart and its persisted copy.
func (s *CartService) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetLiveCartSessions(n)

	s.mirror.Forget(sessionID)
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete cart %s: %w", sessionID, err)
	}
	return nil
}

// Live reports the number of carts held in memory.
func (s *CartService) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Flush waits until every cart mutation so far has reached the store.
func (s *CartService) Flush() {
	s.mirror.Flush()
}

// Close stops the idle sweep and writes out pending carts.
func (s *CartService) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
		s.wg.Wait()
		s.mirror.Close()
	})
	return nil
}

// lookup returns the live session and marks it used while the registry lock
// is held, so a concurrent sweep cannot evict a session just handed out.
func (s *CartService) lookup(sessionID string) *cart.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[sessionID]
	if sess != nil {
		sess.Touch(s.now())
	}
	return sess
}

// load reads the saved items of sessionID. Unsaved snapshots win over the store.
// A missing or unreadable entry yields nil.
func (s *CartService) load(ctx context.Context, sessionID string) []domain.CartLineItem {
	data, ok := s.mirror.Latest(sessionID)
	if !ok {
		var err error
		data, err = s.store.Get(ctx, sessionID)
		if err != nil {
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.log.Warn("cart store read failed, starting empty",
					zap.String("session_id", sessionID), zap.Error(err))
			}
			return nil
		}
	}

	items, err := cart.Decode(data)
	if err != nil {
		s.log.Warn("discarding unreadable saved cart",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	return items
}

func (s *CartService) sweepLoop() {
	defer s.wg.Done()

	interval := s.idleTTL / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.sweep(s.now()); n > 0 {
				s.log.Debug("evicted idle carts", zap.Int("count", n))
			}
		case <-s.stopSweep:
			return
		}
	}
}

// sweep evicts carts unused for longer than idleTTL. Evicted carts are re-hydrated on next use.
func (s *CartService) sweep(now time.Time) int {
	s.mu.Lock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.IdleSince()) > s.idleTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetLiveCartSessions(n)
	return evicted
}
