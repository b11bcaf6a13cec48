package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/bookclub-orders/internal/apperr"
	"github.com/xenking/bookclub-orders/internal/domain/access"
	"github.com/xenking/bookclub-orders/internal/domain/city"
	"github.com/xenking/bookclub-orders/internal/domain/coupon"
)

var (
	_ access.RoleSource = (*RoleStore)(nil)
	_ coupon.Store      = (*CouponStore)(nil)
	_ city.Store        = (*CityStore)(nil)
)

// RoleStore resolves user roles with GetUserRole.
type RoleStore struct {
	inv *Invoker
}

// NewRoleStore returns a RoleStore calling through inv.
func NewRoleStore(inv *Invoker) *RoleStore {
	return &RoleStore{inv: inv}
}

// UserRole returns the first role row of the user.
func (s *RoleStore) UserRole(ctx context.Context, userID int64) (access.Role, bool, error) {
	role, ok, err := First(ctx, s.inv, GetUserRole{UserID: userID}, pgx.RowTo[string])
	if err != nil || !ok {
		return "", false, err
	}
	return access.Role(role), true, nil
}

// CouponStore lists and stores encrypted coupons.
type CouponStore struct {
	inv *Invoker
}

// NewCouponStore returns a CouponStore calling through inv.
func NewCouponStore(inv *Invoker) *CouponStore {
	return &CouponStore{inv: inv}
}

type couponRow struct {
	CouponID      int64  `db:"coupon_id"`
	EncryptedCode string `db:"encrypted_code"`
}

// Coupons calls GetCoupons.
func (s *CouponStore) Coupons(ctx context.Context) ([]coupon.Stored, error) {
	rows, err := Collect(ctx, s.inv, GetCoupons{}, pgx.RowToStructByName[couponRow])
	if err != nil {
		return nil, err
	}
	out := make([]coupon.Stored, len(rows))
	for i, r := range rows {
		out[i] = coupon.Stored{ID: r.CouponID, EncryptedCode: r.EncryptedCode}
	}
	return out, nil
}

// Create stores an already encrypted code and returns its id.
func (s *CouponStore) Create(ctx context.Context, encrypted string) (int64, error) {
	return returnedID(ctx, s.inv, CreateCoupon{EncryptedCode: encrypted})
}

// CityStore resolves postal codes with GetCityByZipCode.
type CityStore struct {
	inv *Invoker
}

// NewCityStore returns a CityStore calling through inv.
func NewCityStore(inv *Invoker) *CityStore {
	return &CityStore{inv: inv}
}

type cityRow struct {
	ZipCode string `db:"zip_code"`
	City    string `db:"city"`
}

// CitiesByZip returns every city for zip in procedure order.
func (s *CityStore) CitiesByZip(ctx context.Context, zip string) ([]city.City, error) {
	rows, err := Collect(ctx, s.inv, GetCityByZipCode{ZipCode: zip}, pgx.RowToStructByName[cityRow])
	if err != nil {
		return nil, err
	}
	out := make([]city.City, len(rows))
	for i, r := range rows {
		out[i] = city.City{ZipCode: r.ZipCode, Name: r.City}
	}
	return out, nil
}

// returnedID runs an insert procedure that returns the new id as its only
// column.
func returnedID(ctx context.Context, inv *Invoker, call Call) (int64, error) {
	id, ok, err := First(ctx, inv, call, pgx.RowTo[int64])
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperr.DataAccess(call.Procedure()+" returned no id", pgx.ErrNoRows)
	}
	return id, nil
}
