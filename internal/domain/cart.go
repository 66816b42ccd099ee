package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, as the storefront client stores them.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductID is an opaque product identifier. It decodes from a JSON string or number.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or a number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

func ProductIDFromInt(id int64) ProductID {
	return ProductID(strconv.FormatInt(id, 10))
}

// CartLineItem is one row of the cart. Price is frozen at add-time.
type CartLineItem struct {
	ID           ProductID       `json:"id"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"price"`
	SelectedSize string          `json:"selectedSize"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Key identifies a line item: one row per product and size.
type Key struct {
	ID   ProductID
	Size string
}

func (i CartLineItem) Key() Key {
	return Key{ID: i.ID, Size: i.SelectedSize}
}

// WithQuantity returns a copy of i holding quantity q and the matching subtotal.
func (i CartLineItem) WithQuantity(q int) CartLineItem {
	i.Quantity = q
	i.Subtotal = i.Price.Mul(decimal.NewFromInt(int64(q)))
	return i
}

// CartState is the live cart of one cart session. SelectedSize is UI state and is never persisted.
type CartState struct {
	Items        []CartLineItem `json:"items"`
	SelectedSize string         `json:"selectedSize"`
}
