package domain

import "time"

// Inventory is a row of the inventory table.
type Inventory struct {
	ProductID int64
	Quantity  int
	Version   int // optimistic locking
	UpdatedAt time.Time
}

// StockSnapshot is advisory stock data for one product. A nil StockQuantity
// means the product is unknown to inventory and quantity is not capped.
type StockSnapshot struct {
	ProductID     int64 `json:"product_id"`
	StockQuantity *int  `json:"stock_quantity"`
}

func (s StockSnapshot) Known() bool {
	return s.StockQuantity != nil
}

// StockLevels indexes snapshots by product ID.
type StockLevels map[int64]StockSnapshot

// StockFor reports the stock cap for a product, if one is known.
func (l StockLevels) StockFor(productID int64) (int, bool) {
	s, ok := l[productID]
	if !ok || s.StockQuantity == nil {
		return 0, false
	}
	return *s.StockQuantity, true
}

func IntPtr(v int) *int {
	return &v
}
