package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/pkg/logger"
)

const maxQuantity = 99

type CartSessions interface {
	Session(ctx context.Context, sessionID string) *cart.Session
	Delete(ctx context.Context, sessionID string) error
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartHandler struct {
	carts    CartSessions
	products ProductLookup
	cookies  cookieJar
	timeout  time.Duration
	log      *zap.Logger
}

func NewCartHandler(carts CartSessions, products ProductLookup, production bool, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		cookies:  cookieJar{production: production},
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequestDTO struct {
	ProductID    domain.ProductID `json:"productId"`
	Quantity     int              `json:"quantity"`
	SelectedSize string           `json:"selectedSize"`
}

type UpdateQuantityRequestDTO struct {
	SelectedSize string `json:"selectedSize"`
	Quantity     *int   `json:"quantity"`
}

type SelectedSizeRequestDTO struct {
	SelectedSize string `json:"selectedSize"`
}

// session returns the live cart of the caller, issuing a cart cookie on first contact.
func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) *cart.Session {
	id := ""
	if c, err := r.Cookie(cartCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		h.cookies.setCart(w, r, id)
	}
	return h.carts.Session(r.Context(), id)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session(w, r).Snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	productID, ok := parseProductID(string(req.ProductID))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId must be a positive integer")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.products.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "Product not found")
		return
	}
	if err != nil {
		respondServerError(w, logger.WithContext(r.Context(), h.log), "get product failed", err)
		return
	}
	if !product.HasSize(req.SelectedSize) {
		respondError(w, http.StatusBadRequest, "invalid_size", "selectedSize is not offered for this product")
		return
	}

	view := h.session(w, r).AddToCart(product, req.Quantity, req.SelectedSize)
	respondJSON(w, http.StatusCreated, view)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil || *req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	id, ok := parseProductID(chi.URLParam(r, "productId"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId must be a positive integer")
		return
	}
	view := h.session(w, r).UpdateQuantity(domain.ProductIDFromInt(id), req.SelectedSize, *req.Quantity)
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(chi.URLParam(r, "productId"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId must be a positive integer")
		return
	}
	view := h.session(w, r).RemoveFromCart(domain.ProductIDFromInt(id), r.URL.Query().Get("size"))
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session(w, r).ClearCart())
}

func (h *CartHandler) SetSelectedSize(w http.ResponseWriter, r *http.Request) {
	var req SelectedSizeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	respondJSON(w, http.StatusOK, h.session(w, r).SetSelectedSize(req.SelectedSize))
}

// ForgetSession drops the cart and its stored copy and expires the cart cookie.
func (h *CartHandler) ForgetSession(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(cartCookieName)
	if err == nil && c.Value != "" {
		if err := h.carts.Delete(r.Context(), c.Value); err != nil {
			respondServerError(w, logger.WithContext(r.Context(), h.log), "delete cart failed", err)
			return
		}
	}
	h.cookies.clearCart(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// parseProductID accepts only positive decimal ids, so "007" and "7" name the same line item.
func parseProductID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
