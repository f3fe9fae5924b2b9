package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCartService struct {
	cart       models.Cart
	customerID uuid.UUID
	itemCartID uuid.UUID
	itemID     uuid.UUID
	quantity   int
	err        error
}

func (s *stubCartService) GetOrCreateCart(_ context.Context, customerID uuid.UUID) (*models.Cart, error) {
	s.customerID = customerID
	c := s.cart
	c.CustomerID = customerID
	return &c, nil
}

func (s *stubCartService) AddItem(_ context.Context, cartID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	s.itemCartID = cartID
	s.quantity = quantity
	if s.err != nil {
		return nil, s.err
	}
	return &models.CartItem{ID: uuid.New(), CartID: cartID, ProductID: productID, Quantity: quantity}, nil
}

func (s *stubCartService) UpdateItemQuantity(_ context.Context, cartID, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	s.itemCartID = cartID
	s.itemID = itemID
	s.quantity = quantity
	if s.err != nil {
		return nil, s.err
	}
	return &models.CartItem{ID: itemID, CartID: cartID, Quantity: quantity}, nil
}

func (s *stubCartService) RemoveItem(_ context.Context, cartID, itemID uuid.UUID) error {
	s.itemCartID = cartID
	s.itemID = itemID
	return s.err
}

func (s *stubCartService) PriceSummary(_ context.Context, cartID uuid.UUID) (*cart.Summary, error) {
	return &cart.Summary{
		CartID:           cartID,
		TotalItems:       3,
		OriginalAmount:   decimal.RequireFromString("200"),
		DiscountedAmount: decimal.RequireFromString("180"),
		TotalDiscount:    decimal.RequireFromString("20"),
	}, nil
}

func TestCartSummaryUsesCallerCart(t *testing.T) {
	customerID := uuid.New()
	svc := &stubCartService{cart: models.Cart{ID: uuid.New()}}

	req := asCaller(httptest.NewRequest(http.MethodGet, "/cart", nil), customerID, enums.RoleCustomer)
	rec := httptest.NewRecorder()
	CartSummary(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		CartID           uuid.UUID `json:"cartId"`
		DiscountedAmount string    `json:"discountedAmount"`
	}
	decodeData(t, rec, &body)
	assert.Equal(t, svc.cart.ID, body.CartID)
	assert.Equal(t, "180", body.DiscountedAmount)
	assert.Equal(t, customerID, svc.customerID)
}

func TestCartAddItem(t *testing.T) {
	svc := &stubCartService{cart: models.Cart{ID: uuid.New()}}
	productID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"productId":"`+productID.String()+`","quantity":2}`))
	req = asCaller(req, uuid.New(), enums.RoleCustomer)
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, svc.cart.ID, svc.itemCartID)
	assert.Equal(t, 2, svc.quantity)
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	svc := &stubCartService{cart: models.Cart{ID: uuid.New()}}
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"productId":"`+uuid.NewString()+`","quantity":0}`))
	req = asCaller(req, uuid.New(), enums.RoleCustomer)
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.itemCartID)
}

func TestCartUpdateItemScopesToCallerCart(t *testing.T) {
	svc := &stubCartService{cart: models.Cart{ID: uuid.New()}}
	itemID := uuid.New()

	req := httptest.NewRequest(http.MethodPatch, "/cart/items/x", strings.NewReader(`{"quantity":4}`))
	req = withURLParams(req, map[string]string{"itemId": itemID.String()})
	req = asCaller(req, uuid.New(), enums.RoleCustomer)
	rec := httptest.NewRecorder()
	CartUpdateItem(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, svc.cart.ID, svc.itemCartID)
	assert.Equal(t, itemID, svc.itemID)
	assert.Equal(t, 4, svc.quantity)
}

func TestCartRemoveItem(t *testing.T) {
	svc := &stubCartService{cart: models.Cart{ID: uuid.New()}}
	req := httptest.NewRequest(http.MethodDelete, "/cart/items/x", nil)
	req = withURLParams(req, map[string]string{"itemId": uuid.NewString()})
	req = asCaller(req, uuid.New(), enums.RoleCustomer)
	rec := httptest.NewRecorder()
	CartRemoveItem(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	rec = httptest.NewRecorder()
	req = withURLParams(httptest.NewRequest(http.MethodDelete, "/cart/items/x", nil), map[string]string{"itemId": uuid.NewString()})
	CartRemoveItem(svc, nil).ServeHTTP(rec, asCaller(req, uuid.New(), enums.RoleCustomer))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
