// Package handler exposes the order, coupon and city operations over HTTP.
//
// Successful responses are {"data": ...}; failures are {"code", "message"}
// with the status and caller-safe message taken from apperr.
package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/internal/apperr"
	"github.com/xenking/bookclub-orders/internal/domain/auth"
	"github.com/xenking/bookclub-orders/internal/domain/city"
	"github.com/xenking/bookclub-orders/internal/domain/order"
	"github.com/xenking/bookclub-orders/pkg/httpmiddleware"
)

// TokenCookie is the cookie the web client stores its session token in.
const TokenCookie = "jwt"

const maxBodyBytes = 1 << 20

// OrderService is implemented by *order.Service.
type OrderService interface {
	ListOrders(ctx context.Context, id auth.Identity, page order.PageRequest) (order.Page[order.Order], error)
	SearchOrders(ctx context.Context, id auth.Identity, filter string, page order.PageRequest) (order.Page[order.Order], error)
	ListUserOrders(ctx context.Context, id auth.Identity, page order.PageRequest) (order.Page[order.Order], error)
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (int64, error)
}

// CouponVerifier is implemented by *coupon.Validator.
type CouponVerifier interface {
	Verify(ctx context.Context, code string) error
}

// CityService is implemented by *city.Service.
type CityService interface {
	CityByZip(ctx context.Context, zip string) (city.City, error)
}

// Handler serves the /api routes.
type Handler struct {
	orders   OrderService
	coupons  CouponVerifier
	cities   CityService
	resolver auth.Resolver
}

// New creates a Handler.
func New(orders OrderService, coupons CouponVerifier, cities CityService, resolver auth.Resolver) *Handler {
	return &Handler{
		orders:   orders,
		coupons:  coupons,
		cities:   cities,
		resolver: resolver,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/orders", h.authenticated(h.listOrders))
	mux.Handle("GET /api/orders/search", h.authenticated(h.searchOrders))
	mux.Handle("GET /api/users/me/orders", h.authenticated(h.listUserOrders))
	mux.Handle("POST /api/orders", serve(h.createOrder))
	mux.Handle("POST /api/coupons/verify", serve(h.verifyCoupon))
	mux.Handle("GET /api/cities", serve(h.cityByZip))
}

// apiFunc writes a success response itself and returns failures.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

// authedFunc additionally receives the resolved caller.
type authedFunc func(w http.ResponseWriter, r *http.Request, id auth.Identity) error

func serve(fn apiFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeFailure(r.Context(), w, err)
		}
	})
}

// authenticated resolves the caller once per request and hands the identity
// to fn explicitly.
func (h *Handler) authenticated(fn authedFunc) http.Handler {
	return serve(func(w http.ResponseWriter, r *http.Request) error {
		token, ok := bearerToken(r)
		if !ok {
			return apperr.Unauthenticated(errors.New("no token"))
		}
		id, err := h.resolver.Resolve(r.Context(), token)
		if err != nil {
			return err
		}
		ctx := auth.WithIdentity(r.Context(), id)
		ctx = zctx.With(ctx, zap.Int64("user_id", id.Subject))
		return fn(w, r.WithContext(ctx), id)
	})
}

// bearerToken reads the session cookie first, then the Authorization
// header.
func bearerToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := apperr.Public(err)

	lg := zctx.From(ctx).With(
		zap.Int("status", status),
		zap.Stringer("kind", apperr.KindOf(err)),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed")
	} else {
		lg.Debug("Request rejected")
	}

	httpmiddleware.WriteError(w, status, msg)
}

// writeData writes {"data": <fn output>} with status.
func writeData(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("data")
	fn(&e)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, msg string, extra func(e *jx.Encoder)) {
	writeData(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(msg)
		if extra != nil {
			extra(e)
		}
		e.ObjEnd()
	})
}

// readBody returns the request body, rejecting empty and oversized ones.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Validationf(MsgInvalidBody, "body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, apperr.MissingParameters("body")
	}
	return body, nil
}
