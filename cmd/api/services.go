package main

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// buildServices wires repositories and domain services over one database client.
func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, files storage.FileStore, lifecycle *metrics.Lifecycle) (routes.Services, error) {
	conn := dbClient.DB()

	productRepo := inventory.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	paymentRepo := payments.NewRepository(conn)
	shippingRepo := shipping.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	ledger, err := inventory.NewService(productRepo, dbClient, lifecycle, logg)
	if err != nil {
		return routes.Services{}, fmt.Errorf("inventory service: %w", err)
	}
	pricer, err := promotions.NewPricer(promotions.NewRepository(conn), nil)
	if err != nil {
		return routes.Services{}, fmt.Errorf("pricer: %w", err)
	}
	cartSvc, err := cart.NewService(cartRepo, dbClient, productRepo, pricer)
	if err != nil {
		return routes.Services{}, fmt.Errorf("cart service: %w", err)
	}
	customerSvc, err := customers.NewService(customers.NewRepository(conn))
	if err != nil {
		return routes.Services{}, fmt.Errorf("customers service: %w", err)
	}
	transitions, err := orders.NewTransitioner(orderRepo, ledger, emitter, lifecycle)
	if err != nil {
		return routes.Services{}, fmt.Errorf("order transitioner: %w", err)
	}
	orderSvc, err := orders.NewService(orderRepo, dbClient, transitions, emitter, lifecycle, logg)
	if err != nil {
		return routes.Services{}, fmt.Errorf("orders service: %w", err)
	}
	paymentSvc, err := payments.NewService(
		paymentRepo,
		orderRepo,
		dbClient,
		transitions,
		files,
		emitter,
		lifecycle,
		logg,
		cfg.Storage.MaxUploadBytes(),
	)
	if err != nil {
		return routes.Services{}, fmt.Errorf("payments service: %w", err)
	}
	shippingSvc, err := shipping.NewService(shippingRepo, orderRepo, dbClient, transitions, emitter, logg)
	if err != nil {
		return routes.Services{}, fmt.Errorf("shipping service: %w", err)
	}
	checkoutSvc, err := checkout.NewService(
		dbClient,
		checkout.Repositories{
			Carts:    cartRepo,
			Products: productRepo,
			Orders:   orderRepo,
			Payments: paymentRepo,
			Shipping: shippingRepo,
		},
		pricer,
		ledger,
		customerSvc,
		emitter,
		lifecycle,
		logg,
	)
	if err != nil {
		return routes.Services{}, fmt.Errorf("checkout service: %w", err)
	}

	return routes.Services{
		Checkout:  checkoutSvc,
		Cart:      cartSvc,
		Orders:    orderSvc,
		Payments:  paymentSvc,
		Shipping:  shippingSvc,
		Inventory: ledger,
	}, nil
}
