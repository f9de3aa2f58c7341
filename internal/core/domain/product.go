package domain

import "github.com/shopspring/decimal"

// ProductStock is the slice of the catalog's product this core owns at
// fulfillment time: the stock count and the visibility flag. Everything else
// about the product belongs to the catalog.
type ProductStock struct {
	GoodID              int64
	GoodName            string
	RetailPrice         decimal.Decimal
	WarehouseQuantity   int
	Display             bool
	MinQuantityForOrder *int
}
