package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/bookclub-orders/internal/apperr"
	"github.com/xenking/bookclub-orders/internal/domain/auth"
	"github.com/xenking/bookclub-orders/internal/domain/order"
)

// Response messages.
const (
	MsgOrderCreated      = "Order created"
	MsgInvalidPagination = "Invalid pagination parameters"
	MsgInvalidBody       = "Invalid request body"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	page, err := pageFromQuery(r)
	if err != nil {
		return err
	}
	res, err := h.orders.ListOrders(r.Context(), id, page)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodePage(e, res) })
	return nil
}

func (h *Handler) searchOrders(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	filter := r.URL.Query().Get("searchInput")
	if filter == "" {
		return apperr.MissingParameters("searchInput")
	}
	page, err := pageFromQuery(r)
	if err != nil {
		return err
	}
	res, err := h.orders.SearchOrders(r.Context(), id, filter, page)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodePage(e, res) })
	return nil
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request, id auth.Identity) error {
	page, err := pageFromQuery(r)
	if err != nil {
		return err
	}
	res, err := h.orders.ListUserOrders(r.Context(), id, page)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodePage(e, res) })
	return nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	req, err := decodeCreateOrder(body)
	if err != nil {
		return err
	}
	orderID, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, MsgOrderCreated, func(e *jx.Encoder) {
		e.FieldStart("orderId")
		e.Int64(orderID)
	})
	return nil
}

// pageFromQuery reads totalReceivedItems and limit. Both are required.
func pageFromQuery(r *http.Request) (order.PageRequest, error) {
	q := r.URL.Query()
	rawOffset, rawLimit := q.Get("totalReceivedItems"), q.Get("limit")
	if rawOffset == "" || rawLimit == "" {
		return order.PageRequest{}, apperr.MissingParameters("totalReceivedItems, limit")
	}
	offset, err := strconv.Atoi(rawOffset)
	if err != nil {
		return order.PageRequest{}, apperr.Validationf(MsgInvalidPagination, "totalReceivedItems %q", rawOffset)
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil {
		return order.PageRequest{}, apperr.Validationf(MsgInvalidPagination, "limit %q", rawLimit)
	}
	return order.PageRequest{Offset: offset, Limit: limit}, nil
}

func encodePage(e *jx.Encoder, p order.Page[order.Order]) {
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for _, o := range p.Items {
		encodeOrder(e, o)
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Int(p.Total)
	e.FieldStart("totalReceivedItems")
	e.Int(p.NextOffset)
	e.FieldStart("hasMore")
	e.Bool(p.HasMore)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Int64(o.ID)
	e.FieldStart("userId")
	e.Int64(o.UserID)
	for _, f := range [...]struct{ key, value string }{
		{"name", o.Name},
		{"email", o.Email},
		{"phoneNumber", o.PhoneNumber},
		{"streetName", o.StreetName},
		{"houseNumber", o.HouseNumber},
		{"zipCode", o.ZipCode},
		{"city", o.City},
		{"coupon", o.Coupon},
	} {
		e.FieldStart(f.key)
		e.Str(f.value)
	}
	e.FieldStart("totalPrice")
	e.Num(jx.Num(o.TotalPrice.StringFixed(2)))
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(it.ProductID)
		e.FieldStart("title")
		e.Str(it.Title)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		e.Num(jx.Num(it.Price.StringFixed(2)))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
