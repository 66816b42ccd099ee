package service

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
)

type mockAdminStore struct {
	m       sync.RWMutex
	admins  map[int64]*domain.Admin
	nextID  int64
	err     error
	updates int
}

func newMockAdminStore() *mockAdminStore {
	return &mockAdminStore{admins: make(map[int64]*domain.Admin), nextID: 1}
}

func (s *mockAdminStore) add(email, hash string) *domain.Admin {
	s.m.Lock()
	defer s.m.Unlock()
	a := &domain.Admin{ID: s.nextID, Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	s.admins[a.ID] = a
	s.nextID++
	return a
}

func (s *mockAdminStore) get(id int64) domain.Admin {
	s.m.RLock()
	defer s.m.RUnlock()
	return *s.admins[id]
}

func (s *mockAdminStore) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, a := range s.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrAdminNotFound
}

func (s *mockAdminStore) GetByID(_ context.Context, id int64) (*domain.Admin, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.admins[id]
	if !ok {
		return nil, repository.ErrAdminNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *mockAdminStore) Create(_ context.Context, email, hash string) (*domain.Admin, error) {
	if s.err != nil {
		return nil, s.err
	}
	if _, err := s.GetByEmail(context.Background(), email); err == nil {
		return nil, repository.ErrEmailConflict
	}
	a := s.add(email, hash)
	cp := *a
	return &cp, nil
}

func (s *mockAdminStore) Update(_ context.Context, id int64, patch domain.AdminPatch) (*domain.Admin, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.admins[id]
	if !ok {
		return nil, repository.ErrAdminNotFound
	}
	if patch.Email != nil {
		for _, other := range s.admins {
			if other.ID != id && other.Email == *patch.Email {
				return nil, repository.ErrEmailConflict
			}
		}
		a.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		a.PasswordHash = *patch.PasswordHash
	}
	s.updates++
	cp := *a
	return &cp, nil
}

type mockPublisher struct {
	m      sync.Mutex
	events []publisher.Event
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, e publisher.Event) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *mockPublisher) Close() error { return nil }

func (p *mockPublisher) types() []string {
	p.m.Lock()
	defer p.m.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mockCartCache struct {
	m    sync.RWMutex
	data map[string][]byte
	err  error
	gets int
}

func newMockCartCache() *mockCartCache {
	return &mockCartCache{data: make(map[string][]byte)}
}

func (c *mockCartCache) Get(_ context.Context, id string) ([]byte, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.gets++
	if c.err != nil {
		return nil, c.err
	}
	v, ok := c.data[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (c *mockCartCache) Set(_ context.Context, id string, payload []byte) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[id] = append([]byte(nil), payload...)
	return nil
}

func (c *mockCartCache) Delete(_ context.Context, id string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.data, id)
	return c.err
}

func (c *mockCartCache) getCount() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.gets
}

func (c *mockCartCache) raw(id string) ([]byte, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	v, ok := c.data[id]
	return v, ok
}
