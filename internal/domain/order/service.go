// Package order implements order listing, search and placement.
package order

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/internal/apperr"
	"github.com/xenking/bookclub-orders/internal/domain/access"
	"github.com/xenking/bookclub-orders/internal/domain/auth"
	"github.com/xenking/bookclub-orders/internal/domain/product"
)

// MaxSearchLen bounds the search filter length in characters.
const MaxSearchLen = 200

// Gate authorizes a caller for a role.
type Gate interface {
	Require(ctx context.Context, id auth.Identity, required access.Role) (access.Role, error)
}

// CouponChecker reports whether a coupon code is valid.
type CouponChecker interface {
	Validate(ctx context.Context, code string) (bool, error)
}

// Service runs the order operations.
type Service struct {
	gate    Gate
	coupons CouponChecker
	store   Store
}

// NewService creates an order Service.
func NewService(gate Gate, coupons CouponChecker, store Store) *Service {
	return &Service{
		gate:    gate,
		coupons: coupons,
		store:   store,
	}
}

// ListOrders returns a page of all orders. Admin only.
func (s *Service) ListOrders(ctx context.Context, id auth.Identity, page PageRequest) (Page[Order], error) {
	if err := page.Validate(); err != nil {
		return Page[Order]{}, err
	}
	if _, err := s.gate.Require(ctx, id, access.RoleAdmin); err != nil {
		return Page[Order]{}, err
	}

	orders, total, err := s.store.Orders(ctx, page)
	if err != nil {
		return Page[Order]{}, errors.Wrap(err, "list orders")
	}
	return NewPage(orders, total, page)
}

// SearchOrders returns a page of orders matching filter. Admin only.
func (s *Service) SearchOrders(ctx context.Context, id auth.Identity, filter string, page PageRequest) (Page[Order], error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return Page[Order]{}, apperr.MissingParameters("searchInput")
	}
	if utf8.RuneCountInString(filter) > MaxSearchLen {
		return Page[Order]{}, apperr.Validation("Search input too long")
	}
	if err := page.Validate(); err != nil {
		return Page[Order]{}, err
	}
	role, err := s.gate.Require(ctx, id, access.RoleAdmin)
	if err != nil {
		return Page[Order]{}, err
	}

	orders, total, err := s.store.SearchOrders(ctx, role, filter, page)
	if err != nil {
		return Page[Order]{}, errors.Wrap(err, "search orders")
	}
	return NewPage(orders, total, page)
}

// ListUserOrders returns a page of the caller's own orders.
func (s *Service) ListUserOrders(ctx context.Context, id auth.Identity, page PageRequest) (Page[Order], error) {
	if err := page.Validate(); err != nil {
		return Page[Order]{}, err
	}

	orders, total, err := s.store.UserOrders(ctx, id.Subject, page)
	if err != nil {
		return Page[Order]{}, errors.Wrap(err, "list user orders")
	}
	return NewPage(orders, total, page)
}

// CreateOrder validates req, registers the customer when the email is new
// and stores the order with its lines. All writes share one transaction.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (int64, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return 0, err
	}

	if req.Coupon != "" {
		ok, err := s.coupons.Validate(ctx, req.Coupon)
		if err != nil {
			return 0, errors.Wrap(err, "validate coupon")
		}
		if !ok {
			return 0, apperr.Validation(MsgInvalidCoupon)
		}
	}

	var orderID int64
	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		if err := checkCatalog(ctx, tx, &req); err != nil {
			return err
		}

		userID, err := ensureUser(ctx, tx, req.Customer)
		if err != nil {
			return err
		}

		orderID, err = tx.CreateOrder(ctx, Header{
			UserID:     userID,
			Customer:   req.Customer,
			Coupon:     req.Coupon,
			TotalPrice: req.TotalPrice.Decimal,
		})
		if err != nil {
			return errors.Wrap(err, "create order")
		}

		for _, l := range req.Lines {
			if err := tx.AddOrderLine(ctx, orderID, l); err != nil {
				return errors.Wrapf(err, "add line for product %d", l.ProductID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	zctx.From(ctx).Info("Order created",
		zap.Int64("order_id", orderID),
		zap.Int("lines", len(req.Lines)),
		zap.String("total", req.TotalPrice.Decimal.StringFixed(2)),
	)
	return orderID, nil
}

// checkCatalog verifies that every line references an existing product at
// its current price.
func checkCatalog(ctx context.Context, tx TxStore, req *CreateOrderRequest) error {
	products, err := tx.ProductsByIDs(ctx, req.ProductIDs())
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	catalog := product.Index(products)

	for _, l := range req.Lines {
		p, ok := catalog[l.ProductID]
		if !ok {
			return apperr.Validationf(MsgUnknownProduct, "product %d not in catalog", l.ProductID)
		}
		if !p.Price.Equal(l.Price) {
			return apperr.Validationf(MsgPriceMismatch, "product %d costs %s, got %s", l.ProductID, p.Price, l.Price)
		}
	}
	return nil
}

func ensureUser(ctx context.Context, tx TxStore, c Customer) (int64, error) {
	id, ok, err := tx.UserIDByEmail(ctx, c.Email)
	if err != nil {
		return 0, errors.Wrap(err, "lookup user")
	}
	if ok {
		return id, nil
	}

	id, err = tx.CreateUser(ctx, c)
	if err != nil {
		return 0, errors.Wrap(err, "create user")
	}
	return id, nil
}
