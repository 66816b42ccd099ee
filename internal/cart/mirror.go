package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
)

// Mirror writes cart snapshots to the session store in the background.
// Only the latest snapshot of a session is kept while it waits, and a single
// writer goroutine performs the writes, so writes for one session never reorder.
type Mirror struct {
	store        cache.CartCache
	log          *zap.Logger
	writeTimeout time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	pending  map[string][]byte
	inflight map[string][]byte
	closed   bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewMirror(store cache.CartCache, log *zap.Logger) *Mirror {
	m := &Mirror{
		store:        store,
		log:          log,
		writeTimeout: 2 * time.Second,
		pending:      make(map[string][]byte),
		inflight:     make(map[string][]byte),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.run()
	return m
}

// Enqueue implements Persister.
func (m *Mirror) Enqueue(sessionID string, items []domain.CartLineItem) {
	data, err := Encode(items)
	if err != nil {
		m.log.Error("encode cart", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Warn("cart write dropped after mirror close", zap.String("session_id", sessionID))
		return
	}
	m.pending[sessionID] = data
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Latest returns the newest snapshot not yet confirmed by the store.
func (m *Mirror) Latest(sessionID string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.pending[sessionID]; ok {
		return data, true
	}
	data, ok := m.inflight[sessionID]
	return data, ok
}

// Forget drops any queued snapshot of sessionID and waits for an in-flight write to finish.
func (m *Mirror) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sessionID)
	for {
		if _, busy := m.inflight[sessionID]; !busy {
			return
		}
		m.cond.Wait()
	}
}

// Flush blocks until every queued snapshot has been written.
func (m *Mirror) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.pending) > 0 || len(m.inflight) > 0 {
		m.cond.Wait()
	}
}

// Close flushes and stops the writer. Later snapshots are dropped.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.wake:
			m.drain()
		case <-m.stop:
			m.drain()
			return
		}
	}
}

func (m *Mirror) drain() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		var (
			id   string
			data []byte
		)
		for id, data = range m.pending {
			break
		}
		delete(m.pending, id)
		m.inflight[id] = data
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
		err := m.store.Set(ctx, id, data)
		cancel()
		if err != nil {
			metrics.CartStoreWriteFailed()
			m.log.Warn("cart store write failed", zap.String("session_id", id), zap.Error(err))
		}

		m.mu.Lock()
		delete(m.inflight, id)
		m.cond.Broadcast()
		m.mu.Unlock()
	}
}
