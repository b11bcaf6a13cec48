package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookclub-orders/internal/domain/access"
	"github.com/xenking/bookclub-orders/internal/domain/product"
)

// LineItem is one product line of a stored order.
type LineItem struct {
	ProductID int64           `json:"productId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is a stored order with its customer and lines.
type Order struct {
	ID          int64
	UserID      int64
	Name        string
	Email       string
	PhoneNumber string
	StreetName  string
	HouseNumber string
	ZipCode     string
	City        string
	Coupon      string
	TotalPrice  decimal.Decimal
	CreatedAt   time.Time
	Items       []LineItem
}

// Customer is the contact and delivery data of an order.
type Customer struct {
	Name        string
	Email       string
	PhoneNumber string
	StreetName  string
	HouseNumber string
	ZipCode     string
	City        string
}

// Line is a requested product line.
type Line struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Header is the order row written by CreateOrder.
type Header struct {
	UserID     int64
	Customer   Customer
	Coupon     string
	TotalPrice decimal.Decimal
}

// Store reads orders page by page. Each list call returns the page rows and
// the total number of rows matching the query.
type Store interface {
	Orders(ctx context.Context, page PageRequest) ([]Order, int, error)
	SearchOrders(ctx context.Context, role access.Role, filter string, page PageRequest) ([]Order, int, error)
	UserOrders(ctx context.Context, userID int64, page PageRequest) ([]Order, int, error)

	// WithinTx runs fn in one transaction. Any error from fn rolls back
	// every write made through tx.
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error
}

// TxStore holds the writes of the order workflow.
type TxStore interface {
	ProductsByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
	UserIDByEmail(ctx context.Context, email string) (id int64, ok bool, err error)
	CreateUser(ctx context.Context, c Customer) (int64, error)
	CreateOrder(ctx context.Context, h Header) (int64, error)
	AddOrderLine(ctx context.Context, orderID int64, l Line) error
}
