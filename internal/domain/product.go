package domain

// Product is the catalog's view of a sellable item. The catalog owns
// everything here except stock_quantity, which inventory reservation mutates
// through conditional decrements only.
type Product struct {
	ID            string
	Name          string
	Price         int64
	Available     bool
	StockQuantity int
}
