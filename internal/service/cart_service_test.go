package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
)

func tee() *domain.Product {
	return &domain.Product{ID: 7, Name: "Tee", Price: decimal.NewFromInt(50), Sizes: []string{"M", "L"}}
}

func newTestCartService(t *testing.T, store *mockCartCache, idle time.Duration) *CartService {
	s := NewCartService(store, zap.NewNop(), idle)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCartService_SessionIsSingleLiveInstance(t *testing.T) {
	sut := newTestCartService(t, newMockCartCache(), 0)

	a := sut.Session(context.Background(), "sid")
	b := sut.Session(context.Background(), "sid")
	c := sut.Session(context.Background(), "other")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, sut.Live())
}

func TestCartService_HydratesFromStore(t *testing.T) {
	store := newMockCartCache()
	saved := []domain.CartLineItem{
		domain.CartLineItem{ID: "7", Name: "Tee", Price: decimal.NewFromInt(50), SelectedSize: "M"}.WithQuantity(2),
	}
	data, err := cart.Encode(saved)
	require.NoError(t, err)
	store.data["sid"] = data

	sut := newTestCartService(t, store, 0)
	v := sut.Session(context.Background(), "sid").Snapshot()

	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].Quantity)
	assert.True(t, v.Total.Equal(decimal.NewFromInt(100)))
}

func TestCartService_ConcurrentFirstUseHydratesOnce(t *testing.T) {
	store := newMockCartCache()
	sut := newTestCartService(t, store, 0)

	var wg sync.WaitGroup
	sessions := make([]*cart.Session, 20)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = sut.Session(context.Background(), "sid")
		}(i)
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, store.getCount())
}

func TestCartService_MalformedSavedCartStartsEmpty(t *testing.T) {
	store := newMockCartCache()
	store.data["sid"] = []byte(`{not json`)

	sut := newTestCartService(t, store, 0)

	assert.Empty(t, sut.Session(context.Background(), "sid").Items())
}

func TestCartService_StoreReadErrorStartsEmpty(t *testing.T) {
	store := newMockCartCache()
	store.err = errors.New("redis down")

	sut := newTestCartService(t, store, 0)
	s := sut.Session(context.Background(), "sid")

	assert.Empty(t, s.Items())
	v := s.AddToCart(tee(), 1, "M")
	assert.Len(t, v.Items, 1)
}

func TestCartService_MutationsReachStore(t *testing.T) {
	store := newMockCartCache()
	sut := newTestCartService(t, store, 0)

	s := sut.Session(context.Background(), "sid")
	s.AddToCart(tee(), 2, "M")
	s.AddToCart(tee(), 1, "M")
	sut.Flush()

	raw, ok := store.raw("sid")
	require.True(t, ok)
	items, err := cart.Decode(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, items[0].Subtotal.Equal(decimal.NewFromInt(150)))
}

func TestCartService_ClearThenRestoreRoundTripsThroughStore(t *testing.T) {
	store := newMockCartCache()
	sut := newTestCartService(t, store, time.Minute)

	s := sut.Session(context.Background(), "sid")
	s.AddToCart(tee(), 2, "M")
	s.AddToCart(tee(), 1, "L")
	before := s.Items()
	sut.Flush()

	assert.Equal(t, 1, sut.sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, sut.Live())

	restored := sut.Session(context.Background(), "sid")
	assert.NotSame(t, s, restored)
	require.Len(t, restored.Items(), 2)
	for i := range before {
		assert.Equal(t, before[i].Key(), restored.Items()[i].Key())
		assert.Equal(t, before[i].Quantity, restored.Items()[i].Quantity)
		assert.True(t, before[i].Subtotal.Equal(restored.Items()[i].Subtotal))
	}
}

func TestCartService_SweepKeepsActiveSessions(t *testing.T) {
	sut := newTestCartService(t, newMockCartCache(), time.Minute)

	sut.Session(context.Background(), "sid")

	assert.Equal(t, 0, sut.sweep(time.Now()))
	assert.Equal(t, 1, sut.Live())
}

func TestCartService_LookupRefreshesIdleClock(t *testing.T) {
	sut := newTestCartService(t, newMockCartCache(), 0)
	sut.idleTTL = time.Hour
	start := time.Now()

	first := sut.Session(context.Background(), "sid")

	sut.now = func() time.Time { return start.Add(50 * time.Minute) }
	again := sut.Session(context.Background(), "sid")
	require.Same(t, first, again)

	// Idle for 20 minutes since the last lookup, not 70 since hydration.
	assert.Equal(t, 0, sut.sweep(start.Add(70*time.Minute)))
	assert.Equal(t, 1, sut.Live())

	again.AddToCart(tee(), 1, "M")
	assert.Same(t, again, sut.Session(context.Background(), "sid"))
	assert.Len(t, sut.Session(context.Background(), "sid").Items(), 1)
}

func TestCartService_Delete(t *testing.T) {
	store := newMockCartCache()
	sut := newTestCartService(t, store, 0)

	s := sut.Session(context.Background(), "sid")
	s.AddToCart(tee(), 1, "M")
	sut.Flush()

	require.NoError(t, sut.Delete(context.Background(), "sid"))

	_, ok := store.raw("sid")
	assert.False(t, ok)
	assert.Equal(t, 0, sut.Live())
	assert.Empty(t, sut.Session(context.Background(), "sid").Items())
}

func TestCartService_CloseFlushesPendingWrites(t *testing.T) {
	store := newMockCartCache()
	sut := NewCartService(store, zap.NewNop(), time.Minute)

	sut.Session(context.Background(), "sid").AddToCart(tee(), 4, "L")
	require.NoError(t, sut.Close())
	require.NoError(t, sut.Close())

	raw, ok := store.raw("sid")
	require.True(t, ok)
	items, err := cart.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 4, items[0].Quantity)
}
