package cart

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
)

// Persister receives the full item sequence after every transition. It must not block.
type Persister interface {
	Enqueue(sessionID string, items []domain.CartLineItem)
}

// View is a consistent read of a session.
type View struct {
	Items        []domain.CartLineItem `json:"items"`
	SelectedSize string                `json:"selectedSize"`
	Total        decimal.Decimal       `json:"total"`
	ItemCount    int                   `json:"itemCount"`
}

// Session owns the live cart of one cart session. Transitions are serialized.
type Session struct {
	id        string
	persister Persister

	mu       sync.Mutex
	state    domain.CartState
	lastUsed time.Time
}

// NewSession creates a session hydrated with saved (nil for an empty cart).
func NewSession(id string, saved []domain.CartLineItem, p Persister) *Session {
	s := &Session{
		id:        id,
		persister: p,
		state:     domain.CartState{Items: []domain.CartLineItem{}},
		lastUsed:  time.Now(),
	}
	if saved != nil {
		s.Dispatch(RestoreCart(saved))
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Dispatch applies a and mirrors the resulting items to the persister.
func (s *Session) Dispatch(a Action) View {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	s.lastUsed = time.Now()
	v := s.viewLocked()
	// Enqueue under the lock so snapshots reach the persister in transition order.
	if s.persister != nil {
		s.persister.Enqueue(s.id, s.state.Items)
	}
	s.mu.Unlock()

	metrics.CartAction(a.Type.String())
	return v
}

// AddToCart freezes the promoted price of p into a new line item and adds it.
// A non-positive quantity is ignored.
func (s *Session) AddToCart(p *domain.Product, quantity int, size string) View {
	if quantity <= 0 {
		return s.Snapshot()
	}
	price := FinalPrice(p.Price, p.Promotion)
	item := domain.CartLineItem{
		ID:           domain.ProductIDFromInt(p.ID),
		Name:         p.Name,
		Image:        p.Banner,
		Price:        price,
		SelectedSize: size,
	}.WithQuantity(quantity)
	return s.Dispatch(AddItem(item))
}

func (s *Session) RemoveFromCart(id domain.ProductID, size string) View {
	return s.Dispatch(RemoveItem(id, size))
}

// UpdateQuantity sets the quantity; zero or less removes the item.
func (s *Session) UpdateQuantity(id domain.ProductID, size string, quantity int) View {
	if quantity <= 0 {
		return s.RemoveFromCart(id, size)
	}
	return s.Dispatch(UpdateQuantity(id, size, quantity))
}

func (s *Session) ClearCart() View {
	return s.Dispatch(ClearCart())
}

func (s *Session) SetSelectedSize(size string) View {
	return s.Dispatch(SetSelectedSize(size))
}

func (s *Session) Items() []domain.CartLineItem {
	return s.Snapshot().Items
}

func (s *Session) SelectedSize() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SelectedSize
}

func (s *Session) Total() decimal.Decimal {
	return s.Snapshot().Total
}

func (s *Session) ItemCount() int {
	return s.Snapshot().ItemCount
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return s.viewLocked()
}

// Touch marks the session as used at t. Earlier times are ignored.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.lastUsed) {
		s.lastUsed = t
	}
}

// IdleSince reports the last time the session was read or written.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) viewLocked() View {
	return View{
		Items:        clone(s.state.Items),
		SelectedSize: s.state.SelectedSize,
		Total:        Total(s.state.Items),
		ItemCount:    ItemCount(s.state.Items),
	}
}
