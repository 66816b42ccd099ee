// Package cart holds the cart state machine: a pure reducer over domain.CartState
// and the Session controller that owns one live state and mirrors it to the session store.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/fjod/storefront/internal/domain"
)

type ActionType int

const (
	ActionAddItem ActionType = iota + 1
	ActionRemoveItem
	ActionUpdateQuantity
	ActionClearCart
	ActionSetSelectedSize
	ActionRestoreCart
)

var actionNames = map[ActionType]string{
	ActionAddItem:         "add_item",
	ActionRemoveItem:      "remove_item",
	ActionUpdateQuantity:  "update_quantity",
	ActionClearCart:       "clear_cart",
	ActionSetSelectedSize: "set_selected_size",
	ActionRestoreCart:     "restore_cart",
}

func (t ActionType) String() string {
	if name, ok := actionNames[t]; ok {
		return name
	}
	return "unknown"
}

// Action is one state transition. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType
	Item     domain.CartLineItem   // ActionAddItem
	Key      domain.Key            // ActionRemoveItem, ActionUpdateQuantity
	Quantity int                   // ActionUpdateQuantity
	Size     string                // ActionSetSelectedSize
	Items    []domain.CartLineItem // ActionRestoreCart
}

func AddItem(item domain.CartLineItem) Action {
	return Action{Type: ActionAddItem, Item: item}
}

func RemoveItem(id domain.ProductID, size string) Action {
	return Action{Type: ActionRemoveItem, Key: domain.Key{ID: id, Size: size}}
}

func UpdateQuantity(id domain.ProductID, size string, quantity int) Action {
	return Action{Type: ActionUpdateQuantity, Key: domain.Key{ID: id, Size: size}, Quantity: quantity}
}

func ClearCart() Action {
	return Action{Type: ActionClearCart}
}

func SetSelectedSize(size string) Action {
	return Action{Type: ActionSetSelectedSize, Size: size}
}

func RestoreCart(items []domain.CartLineItem) Action {
	return Action{Type: ActionRestoreCart, Items: items}
}

// Reduce applies a to s and returns the next state. The input state is never modified.
func Reduce(s domain.CartState, a Action) domain.CartState {
	switch a.Type {
	case ActionAddItem:
		idx := indexOf(s.Items, a.Item.Key())
		if idx < 0 {
			s.Items = appendCopy(s.Items, a.Item.WithQuantity(a.Item.Quantity))
			return s
		}
		items := clone(s.Items)
		items[idx] = items[idx].WithQuantity(items[idx].Quantity + a.Item.Quantity)
		s.Items = items
		return s

	case ActionRemoveItem:
		s.Items = without(s.Items, a.Key)
		return s

	case ActionUpdateQuantity:
		if a.Quantity <= 0 {
			s.Items = without(s.Items, a.Key)
			return s
		}
		idx := indexOf(s.Items, a.Key)
		if idx < 0 {
			return s
		}
		items := clone(s.Items)
		items[idx] = items[idx].WithQuantity(a.Quantity)
		s.Items = items
		return s

	case ActionClearCart:
		s.Items = []domain.CartLineItem{}
		return s

	case ActionSetSelectedSize:
		s.SelectedSize = a.Size
		return s

	case ActionRestoreCart:
		s.Items = clone(a.Items)
		return s

	default:
		return s
	}
}

// FinalPrice applies a percentage promotion: price - price*promotion/100 when promotion > 0.
func FinalPrice(price, promotion decimal.Decimal) decimal.Decimal {
	if !promotion.IsPositive() {
		return price
	}
	return price.Sub(price.Mul(promotion).Div(decimal.NewFromInt(100)))
}

// Total is the sum of the item subtotals.
func Total(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// ItemCount is the sum of the item quantities.
func ItemCount(items []domain.CartLineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func indexOf(items []domain.CartLineItem, k domain.Key) int {
	for i := range items {
		if items[i].Key() == k {
			return i
		}
	}
	return -1
}

func without(items []domain.CartLineItem, k domain.Key) []domain.CartLineItem {
	if indexOf(items, k) < 0 {
		return items
	}
	out := make([]domain.CartLineItem, 0, len(items)-1)
	for _, it := range items {
		if it.Key() != k {
			out = append(out, it)
		}
	}
	return out
}

func clone(items []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(items))
	copy(out, items)
	return out
}

func appendCopy(items []domain.CartLineItem, item domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(items), len(items)+1)
	copy(out, items)
	return append(out, item)
}
