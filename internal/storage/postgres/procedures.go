package postgres

import "github.com/shopspring/decimal"

// Stored procedure names, as declared in db/migrations.
const (
	ProcGetUserRole             = "GetUserRole"
	ProcGetOrderDetails         = "GetOrderDetails"
	ProcGetFilteredOrderDetails = "GetFilteredOrderDetails"
	ProcGetUserOrdersDetails    = "GetUserOrdersDetails"
	ProcGetCityByZipCode        = "GetCityByZipCode"
	ProcGetCoupons              = "GetCoupons"
	ProcCreateCoupon            = "CreateCoupon"
	ProcGetProductsByIds        = "GetProductsByIds"
	ProcGetUserByEmail          = "GetUserByEmail"
	ProcCreateUser              = "CreateUser"
	ProcCreateOrder             = "CreateOrder"
	ProcAddOrderLine            = "AddOrderLine"
)

// GetUserRole resolves the role of a user.
type GetUserRole struct {
	UserID int64
}

func (GetUserRole) Procedure() string { return ProcGetUserRole }
func (c GetUserRole) Args() []any     { return []any{c.UserID} }

// GetOrderDetails pages through all orders.
type GetOrderDetails struct {
	TotalReceivedItems int
	OrderLimit         int
}

func (GetOrderDetails) Procedure() string { return ProcGetOrderDetails }
func (c GetOrderDetails) Args() []any     { return []any{c.TotalReceivedItems, c.OrderLimit} }

// GetFilteredOrderDetails pages through orders matching FilterValue.
type GetFilteredOrderDetails struct {
	TotalReceivedItems int
	OrderLimit         int
	UserRole           string
	FilterValue        string
}

func (GetFilteredOrderDetails) Procedure() string { return ProcGetFilteredOrderDetails }
func (c GetFilteredOrderDetails) Args() []any {
	return []any{c.TotalReceivedItems, c.OrderLimit, c.UserRole, c.FilterValue}
}

// GetUserOrdersDetails pages through the orders of one user.
type GetUserOrdersDetails struct {
	TotalReceivedItems int
	Limit              int
	UserID             int64
}

func (GetUserOrdersDetails) Procedure() string { return ProcGetUserOrdersDetails }
func (c GetUserOrdersDetails) Args() []any {
	return []any{c.TotalReceivedItems, c.Limit, c.UserID}
}

// GetCityByZipCode resolves cities for a postal code.
type GetCityByZipCode struct {
	ZipCode string
}

func (GetCityByZipCode) Procedure() string { return ProcGetCityByZipCode }
func (c GetCityByZipCode) Args() []any     { return []any{c.ZipCode} }

// GetCoupons lists every stored encrypted coupon.
type GetCoupons struct{}

func (GetCoupons) Procedure() string { return ProcGetCoupons }
func (GetCoupons) Args() []any       { return nil }

// CreateCoupon stores one encrypted coupon code.
type CreateCoupon struct {
	EncryptedCode string
}

func (CreateCoupon) Procedure() string { return ProcCreateCoupon }
func (c CreateCoupon) Args() []any     { return []any{c.EncryptedCode} }

// GetProductsByIds loads catalog entries.
type GetProductsByIds struct {
	ProductIDs []int64
}

func (GetProductsByIds) Procedure() string { return ProcGetProductsByIds }
func (c GetProductsByIds) Args() []any     { return []any{c.ProductIDs} }

// GetUserByEmail looks a user up by email, case-insensitively.
type GetUserByEmail struct {
	Email string
}

func (GetUserByEmail) Procedure() string { return ProcGetUserByEmail }
func (c GetUserByEmail) Args() []any     { return []any{c.Email} }

// CreateUser inserts a user and returns its id. An existing user with the
// same email, compared case-insensitively, is returned unchanged.
type CreateUser struct {
	Name        string
	Email       string
	PhoneNumber string
	StreetName  string
	HouseNumber string
	ZipCode     string
	City        string
	Role        string
}

func (CreateUser) Procedure() string { return ProcCreateUser }
func (c CreateUser) Args() []any {
	return []any{c.Name, c.Email, c.PhoneNumber, c.StreetName, c.HouseNumber, c.ZipCode, c.City, c.Role}
}

// CreateOrder inserts an order header and returns its id.
type CreateOrder struct {
	UserID      int64
	StreetName  string
	HouseNumber string
	ZipCode     string
	City        string
	Email       string
	PhoneNumber string
	Coupon      string
	TotalPrice  decimal.Decimal
}

func (CreateOrder) Procedure() string { return ProcCreateOrder }
func (c CreateOrder) Args() []any {
	return []any{
		c.UserID, c.StreetName, c.HouseNumber, c.ZipCode, c.City,
		c.Email, c.PhoneNumber, c.Coupon, c.TotalPrice,
	}
}

// AddOrderLine inserts one line of an order.
type AddOrderLine struct {
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

func (AddOrderLine) Procedure() string { return ProcAddOrderLine }
func (c AddOrderLine) Args() []any {
	return []any{c.OrderID, c.ProductID, c.Quantity, c.Price}
}
