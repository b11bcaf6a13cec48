package handler

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookclub-orders/internal/apperr"
	"github.com/xenking/bookclub-orders/internal/domain/order"
)

// decodeCreateOrder parses the order payload:
//
//	{
//	  "email": "...", "name": "...", "phoneNumber": "...",
//	  "streetName": "...", "houseNumber": "...", "zipCode": "...", "city": "...",
//	  "coupon": "...", "totalPrice": 25.00,
//	  "products": {"<productId>": {"quantity": 2, "price": 12.50}}
//	}
//
// Lines keep the order of the products object. Presence and value checks
// are left to order.CreateOrderRequest.Validate.
func decodeCreateOrder(body []byte) (order.CreateOrderRequest, error) {
	var req order.CreateOrderRequest
	c := &req.Customer
	text := map[string]*string{
		"email":       &c.Email,
		"name":        &c.Name,
		"phoneNumber": &c.PhoneNumber,
		"streetName":  &c.StreetName,
		"houseNumber": &c.HouseNumber,
		"zipCode":     &c.ZipCode,
		"city":        &c.City,
		"coupon":      &req.Coupon,
	}

	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		k := string(key)
		if dst, ok := text[k]; ok {
			v, err := decodeText(d)
			if err != nil {
				return errors.Wrap(err, k)
			}
			*dst = v
			return nil
		}
		switch k {
		case "totalPrice":
			v, err := decodeMoney(d)
			if err != nil {
				return apperr.Validationf(order.MsgInvalidPrice, "totalPrice: %v", err)
			}
			req.TotalPrice = v
		case "products":
			lines, err := decodeLines(d)
			if err != nil {
				return err
			}
			req.Lines = lines
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return order.CreateOrderRequest{}, appErr
		}
		return order.CreateOrderRequest{}, apperr.Validationf(MsgInvalidBody, "%v", err)
	}
	return req, nil
}

func decodeLines(d *jx.Decoder) ([]order.Line, error) {
	var lines []order.Line
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		id, err := strconv.ParseInt(string(key), 10, 64)
		if err != nil {
			return apperr.Validationf(order.MsgInvalidProduct, "product key %q", key)
		}
		l := order.Line{ProductID: id}
		var hasQuantity, hasPrice bool
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "quantity":
				q, err := d.Int()
				if err != nil {
					return apperr.Validationf(order.MsgInvalidQuantity, "product %d: %v", id, err)
				}
				l.Quantity, hasQuantity = q, true
			case "price":
				p, err := decodeMoney(d)
				if err != nil || !p.Valid {
					return apperr.Validationf(order.MsgInvalidPrice, "product %d: %v", id, err)
				}
				l.Price, hasPrice = p.Decimal, true
			default:
				return d.Skip()
			}
			return nil
		}); err != nil {
			return err
		}
		if !hasQuantity || !hasPrice {
			return apperr.MissingParameters("products." + string(key))
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

// decodeText accepts strings and bare numbers (zip codes and phone numbers
// are often sent unquoted). null reads as empty.
func decodeText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.New("expected string")
	}
}

// decodeMoney reads a JSON number or numeric string. null is not Valid.
func decodeMoney(d *jx.Decoder) (decimal.NullDecimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		raw = s
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	default:
		return decimal.NullDecimal{}, errors.New("expected number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}
