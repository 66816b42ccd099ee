package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

var ErrMalformedCart = errors.New("malformed persisted cart")

// Encode serializes the full item sequence. A nil slice is written as [].
func Encode(items []domain.CartLineItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartLineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart items: %w", err)
	}
	return data, nil
}

// Decode parses a persisted item sequence. Entries with a non-positive quantity
// or a repeated (id, size) pair make the whole payload malformed.
func Decode(data []byte) ([]domain.CartLineItem, error) {
	var items []domain.CartLineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCart, err)
	}

	seen := make(map[domain.Key]struct{}, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %s has quantity %d", ErrMalformedCart, it.ID, it.Quantity)
		}
		if _, dup := seen[it.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate item %s/%s", ErrMalformedCart, it.ID, it.SelectedSize)
		}
		seen[it.Key()] = struct{}{}
	}
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return items, nil
}
