package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Service exposes cart operations. Item mutations are scoped to the cart id so a
// caller can only touch lines of its own cart.
type Service interface {
	GetOrCreateCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	PriceSummary(ctx context.Context, cartID uuid.UUID) (*Summary, error)
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products inventory.Repository
	pricer   pricer
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products inventory.Repository, pricer pricer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	return &service{repo: repo, tx: tx, products: products, pricer: pricer}, nil
}

func (s *service) GetOrCreateCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	cart, err := s.repo.FindByCustomer(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{CustomerID: customerID}
	if err := s.repo.Create(ctx, cart); err != nil {
		// a concurrent request created it first
		if dbpkg.IsUniqueViolation(err, "") {
			existing, findErr := s.repo.FindByCustomer(ctx, customerID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load cart")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if cartID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id and product id are required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var result *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, cartID); err != nil {
			return mapCartErr(err, "cart not found")
		}
		product, err := s.loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItemByProduct(ctx, cartID, productID)
		switch {
		case err == nil:
			combined := existing.Quantity + quantity
			if combined > product.Stock {
				return inventory.ErrInsufficientStock(productID, product.Stock, combined)
			}
			if err := repo.UpdateItemQuantity(ctx, existing.ID, combined); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			existing.Quantity = combined
			result = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			if quantity > product.Stock {
				return inventory.ErrInsufficientStock(productID, product.Stock, quantity)
			}
			item := &models.CartItem{CartID: cartID, ProductID: productID, Quantity: quantity}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
			result = item
			return nil
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var result *models.CartItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, cartID, itemID)
		if err != nil {
			return mapCartErr(err, "cart item not found")
		}
		product, err := s.loadProduct(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return inventory.ErrInsufficientStock(item.ProductID, product.Stock, quantity)
		}
		if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		item.Quantity = quantity
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	deleted, err := s.repo.DeleteItem(ctx, cartID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (s *service) PriceSummary(ctx context.Context, cartID uuid.UUID) (*Summary, error) {
	if _, err := s.repo.FindByID(ctx, cartID); err != nil {
		return nil, mapCartErr(err, "cart not found")
	}
	items, err := s.repo.ListItems(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	products := make(map[uuid.UUID]models.Product, len(rows))
	live := make([]models.Product, 0, len(rows))
	for _, product := range rows {
		products[product.ID] = product
		if !product.IsDeleted() {
			live = append(live, product)
		}
	}
	prices, err := s.pricer.Prices(ctx, live)
	if err != nil {
		return nil, err
	}

	summary := Summarize(cartID, items, products, prices)
	return &summary, nil
}

func (s *service) loadProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.WithTx(tx).FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrProductNotFound(productID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.IsDeleted() {
		return nil, inventory.ErrProductUnavailable(productID)
	}
	return product, nil
}

func mapCartErr(err error, notFoundMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
}
