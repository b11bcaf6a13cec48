package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookclub-orders/internal/domain/access"
	"github.com/xenking/bookclub-orders/internal/domain/order"
	"github.com/xenking/bookclub-orders/internal/domain/product"
)

var (
	_ order.Store   = (*OrderStore)(nil)
	_ order.TxStore = (*orderTx)(nil)
)

// OrderStore implements order.Store with the order stored procedures.
type OrderStore struct {
	inv *Invoker
}

// NewOrderStore returns an OrderStore calling through inv.
func NewOrderStore(inv *Invoker) *OrderStore {
	return &OrderStore{inv: inv}
}

// orderRow is the row shape shared by the order listing procedures.
type orderRow struct {
	OrderID     int64            `db:"order_id"`
	UserID      int64            `db:"user_id"`
	Name        string           `db:"name"`
	Email       string           `db:"email"`
	PhoneNumber string           `db:"phone_number"`
	StreetName  string           `db:"street_name"`
	HouseNumber string           `db:"house_number"`
	ZipCode     string           `db:"zip_code"`
	City        string           `db:"city"`
	Coupon      string           `db:"coupon"`
	TotalPrice  decimal.Decimal  `db:"total_price"`
	CreatedAt   time.Time        `db:"created_at"`
	Items       []order.LineItem `db:"items"`
	TotalCount  int64            `db:"total_count"`
}

func (s *OrderStore) list(ctx context.Context, call Call) ([]order.Order, int, error) {
	rows, err := Collect(ctx, s.inv, call, pgx.RowToStructByName[orderRow])
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	out := make([]order.Order, len(rows))
	for i, r := range rows {
		out[i] = order.Order{
			ID:          r.OrderID,
			UserID:      r.UserID,
			Name:        r.Name,
			Email:       r.Email,
			PhoneNumber: r.PhoneNumber,
			StreetName:  r.StreetName,
			HouseNumber: r.HouseNumber,
			ZipCode:     r.ZipCode,
			City:        r.City,
			Coupon:      r.Coupon,
			TotalPrice:  r.TotalPrice,
			CreatedAt:   r.CreatedAt,
			Items:       r.Items,
		}
	}
	return out, int(rows[0].TotalCount), nil
}

// Orders calls GetOrderDetails.
func (s *OrderStore) Orders(ctx context.Context, page order.PageRequest) ([]order.Order, int, error) {
	return s.list(ctx, GetOrderDetails{
		TotalReceivedItems: page.Offset,
		OrderLimit:         page.Limit,
	})
}

// SearchOrders calls GetFilteredOrderDetails.
func (s *OrderStore) SearchOrders(ctx context.Context, role access.Role, filter string, page order.PageRequest) ([]order.Order, int, error) {
	return s.list(ctx, GetFilteredOrderDetails{
		TotalReceivedItems: page.Offset,
		OrderLimit:         page.Limit,
		UserRole:           string(role),
		FilterValue:        filter,
	})
}

// UserOrders calls GetUserOrdersDetails.
func (s *OrderStore) UserOrders(ctx context.Context, userID int64, page order.PageRequest) ([]order.Order, int, error) {
	return s.list(ctx, GetUserOrdersDetails{
		TotalReceivedItems: page.Offset,
		Limit:              page.Limit,
		UserID:             userID,
	})
}

// WithinTx runs fn against a transaction-bound store.
func (s *OrderStore) WithinTx(ctx context.Context, fn func(tx order.TxStore) error) error {
	return s.inv.WithinTx(ctx, func(tx *Invoker) error {
		return fn(&orderTx{inv: tx})
	})
}

type orderTx struct {
	inv *Invoker
}

type productRow struct {
	ProductID int64           `db:"product_id"`
	Title     string          `db:"title"`
	Price     decimal.Decimal `db:"price"`
}

func (t *orderTx) ProductsByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := Collect(ctx, t.inv, GetProductsByIds{ProductIDs: ids}, pgx.RowToStructByName[productRow])
	if err != nil {
		return nil, err
	}
	out := make([]product.Product, len(rows))
	for i, r := range rows {
		out[i] = product.Product{ID: r.ProductID, Title: r.Title, Price: r.Price}
	}
	return out, nil
}

type userRow struct {
	UserID int64  `db:"user_id"`
	Role   string `db:"role"`
}

func (t *orderTx) UserIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	u, ok, err := First(ctx, t.inv, GetUserByEmail{Email: email}, pgx.RowToStructByName[userRow])
	if err != nil || !ok {
		return 0, false, err
	}
	return u.UserID, true, nil
}

func (t *orderTx) CreateUser(ctx context.Context, c order.Customer) (int64, error) {
	return returnedID(ctx, t.inv, CreateUser{
		Name:        c.Name,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		StreetName:  c.StreetName,
		HouseNumber: c.HouseNumber,
		ZipCode:     c.ZipCode,
		City:        c.City,
		Role:        string(access.RoleCustomer),
	})
}

func (t *orderTx) CreateOrder(ctx context.Context, h order.Header) (int64, error) {
	c := h.Customer
	return returnedID(ctx, t.inv, CreateOrder{
		UserID:      h.UserID,
		StreetName:  c.StreetName,
		HouseNumber: c.HouseNumber,
		ZipCode:     c.ZipCode,
		City:        c.City,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Coupon:      h.Coupon,
		TotalPrice:  h.TotalPrice,
	})
}

func (t *orderTx) AddOrderLine(ctx context.Context, orderID int64, l order.Line) error {
	_, err := t.inv.Invoke(ctx, AddOrderLine{
		OrderID:   orderID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Price:     l.Price,
	})
	return err
}
