// Package product holds the book catalog entries that orders reference.
package product

import "github.com/shopspring/decimal"

// Product is a catalog entry with its current unit price.
type Product struct {
	ID    int64
	Title string
	Price decimal.Decimal
}

// Index maps products by id.
func Index(products []Product) map[int64]Product {
	m := make(map[int64]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}
