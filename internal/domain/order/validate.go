package order

import (
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookclub-orders/internal/apperr"
)

// MaxQuantity caps the quantity of a single order line.
const MaxQuantity = 1000

// maxAmount is the first value a NUMERIC(10,2) money column cannot hold.
var maxAmount = decimal.New(1, 8)

// Validation messages.
const (
	MsgInvalidEmail     = "Invalid email"
	MsgInvalidProduct   = "Invalid product id"
	MsgInvalidQuantity  = "Invalid quantity"
	MsgInvalidPrice     = "Invalid price"
	MsgDuplicateProduct = "Duplicate product"
	MsgTotalMismatch    = "Total price does not match products"
	MsgInvalidCoupon    = "Invalid coupon"
	MsgUnknownProduct   = "Unknown product"
	MsgPriceMismatch    = "Product price mismatch"
)

// CreateOrderRequest is the input of CreateOrder. TotalPrice is the total
// the shopper saw; it must equal the sum of the lines.
type CreateOrderRequest struct {
	Customer   Customer
	Coupon     string
	Lines      []Line
	TotalPrice decimal.NullDecimal
}

// Normalize trims surrounding whitespace from the text fields.
func (r *CreateOrderRequest) Normalize() {
	c := &r.Customer
	for _, f := range []*string{
		&c.Name, &c.Email, &c.PhoneNumber, &c.StreetName,
		&c.HouseNumber, &c.ZipCode, &c.City, &r.Coupon,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// Validate checks presence and shape of every field without touching
// storage.
func (r *CreateOrderRequest) Validate() error {
	c := r.Customer
	required := []struct {
		name  string
		value string
	}{
		{"email", c.Email},
		{"name", c.Name},
		{"streetName", c.StreetName},
		{"zipCode", c.ZipCode},
		{"houseNumber", c.HouseNumber},
		{"phoneNumber", c.PhoneNumber},
		{"city", c.City},
	}
	for _, f := range required {
		if f.value == "" {
			return apperr.MissingParameters(f.name)
		}
	}
	if len(r.Lines) == 0 {
		return apperr.MissingParameters("products")
	}
	if !r.TotalPrice.Valid {
		return apperr.MissingParameters("totalPrice")
	}

	if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
		return apperr.Validationf(MsgInvalidEmail, "email %q", c.Email)
	}

	sum := decimal.Zero
	seen := make(map[int64]struct{}, len(r.Lines))
	for _, l := range r.Lines {
		if l.ProductID <= 0 {
			return apperr.Validationf(MsgInvalidProduct, "product id %d", l.ProductID)
		}
		if _, dup := seen[l.ProductID]; dup {
			return apperr.Validationf(MsgDuplicateProduct, "product %d listed twice", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}

		if l.Quantity < 1 || l.Quantity > MaxQuantity {
			return apperr.Validationf(MsgInvalidQuantity, "product %d quantity %d", l.ProductID, l.Quantity)
		}
		if !validAmount(l.Price) {
			return apperr.Validationf(MsgInvalidPrice, "product %d price %s", l.ProductID, l.Price)
		}
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	total := r.TotalPrice.Decimal
	if !validAmount(total) {
		return apperr.Validationf(MsgInvalidPrice, "total price %s", total)
	}
	if !sum.Equal(total) {
		return apperr.Validationf(MsgTotalMismatch, "lines sum to %s, total is %s", sum, total)
	}
	return nil
}

// ProductIDs returns the product ids of the lines in request order.
func (r *CreateOrderRequest) ProductIDs() []int64 {
	ids := make([]int64, len(r.Lines))
	for i, l := range r.Lines {
		ids[i] = l.ProductID
	}
	return ids
}

// hasCents reports whether d has at most two decimal places.
func hasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func validAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThan(maxAmount) && hasCents(d)
}
