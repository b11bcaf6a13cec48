package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/bookclub-orders/internal/apperr"
)

// MsgValidCoupon answers a successful coupon check.
const MsgValidCoupon = "Valid coupon code"

func (h *Handler) verifyCoupon(w http.ResponseWriter, r *http.Request) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}

	var code string
	if err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "coupon" {
			return d.Skip()
		}
		v, err := decodeText(d)
		code = v
		return err
	}); err != nil {
		return apperr.Validationf(MsgInvalidBody, "%v", err)
	}
	if code == "" {
		return apperr.MissingParameters("coupon")
	}

	if err := h.coupons.Verify(r.Context(), code); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, MsgValidCoupon, nil)
	return nil
}

func (h *Handler) cityByZip(w http.ResponseWriter, r *http.Request) error {
	zip := r.URL.Query().Get("zipCode")
	if zip == "" {
		return apperr.MissingParameters("zipCode")
	}

	c, err := h.cities.CityByZip(r.Context(), zip)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("zipCode")
		e.Str(c.ZipCode)
		e.FieldStart("city")
		e.Str(c.Name)
		e.ObjEnd()
	})
	return nil
}
