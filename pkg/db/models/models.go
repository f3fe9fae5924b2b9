package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// tests and the sqlite dev mode.
func All() []any {
	return []any{
		&Customer{},
		&Product{},
		&StockMovement{},
		&Promotion{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&Shipping{},
		&OutboxEvent{},
	}
}
