package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookclub-orders/internal/apperr"
	"github.com/xenking/bookclub-orders/internal/domain/auth"
	"github.com/xenking/bookclub-orders/internal/domain/city"
	"github.com/xenking/bookclub-orders/internal/domain/order"
)

type fakeOrders struct {
	page    order.Page[order.Order]
	err     error
	created order.CreateOrderRequest
	lastID  auth.Identity
	filter  string
	req     order.PageRequest
	calls   int
}

func (f *fakeOrders) list(id auth.Identity, page order.PageRequest) (order.Page[order.Order], error) {
	f.calls++
	f.lastID, f.req = id, page
	return f.page, f.err
}

func (f *fakeOrders) ListOrders(_ context.Context, id auth.Identity, page order.PageRequest) (order.Page[order.Order], error) {
	return f.list(id, page)
}

func (f *fakeOrders) SearchOrders(_ context.Context, id auth.Identity, filter string, page order.PageRequest) (order.Page[order.Order], error) {
	f.filter = filter
	return f.list(id, page)
}

func (f *fakeOrders) ListUserOrders(_ context.Context, id auth.Identity, page order.PageRequest) (order.Page[order.Order], error) {
	return f.list(id, page)
}

func (f *fakeOrders) CreateOrder(_ context.Context, req order.CreateOrderRequest) (int64, error) {
	f.calls++
	f.created = req
	if f.err != nil {
		return 0, f.err
	}
	return 42, nil
}

type fakeCoupons struct{ valid string }

func (f fakeCoupons) Verify(_ context.Context, code string) error {
	if code != f.valid {
		return apperr.NotFound("No matching coupon")
	}
	return nil
}

type fakeCities struct{}

func (fakeCities) CityByZip(_ context.Context, zip string) (city.City, error) {
	switch zip {
	case "8000":
		return city.City{ZipCode: "8000", Name: "Aarhus C"}, nil
	case "boom":
		return city.City{}, apperr.DataAccess("calling GetCityByZipCode", errors.New("conn reset"))
	default:
		return city.City{}, apperr.NotFound(city.MsgNotFound)
	}
}

type testServer struct {
	mux      *http.ServeMux
	orders   *fakeOrders
	resolver *auth.JWTResolver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	resolver, err := auth.NewJWTResolver([]byte("test-secret-test-secret-test-sec"), "")
	require.NoError(t, err)

	orders := &fakeOrders{}
	mux := http.NewServeMux()
	New(orders, fakeCoupons{valid: "SPRING24"}, fakeCities{}, resolver).Register(mux)
	return &testServer{mux: mux, orders: orders, resolver: resolver}
}

func (s *testServer) token(t *testing.T, subject int64) string {
	t.Helper()
	tok, err := s.resolver.Issue(subject, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

func samplePage() order.Page[order.Order] {
	return order.Page[order.Order]{
		Items: []order.Order{{
			ID:          7,
			UserID:      3,
			Name:        "Ada",
			Email:       "ada@example.com",
			PhoneNumber: "555",
			StreetName:  "Main",
			HouseNumber: "1",
			ZipCode:     "8000",
			City:        "Aarhus C",
			TotalPrice:  decimal.RequireFromString("25"),
			CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Items: []order.LineItem{{
				ProductID: 1, Title: "Dune", Quantity: 2, Price: decimal.RequireFromString("12.5"),
			}},
		}},
		Total:      3,
		Offset:     0,
		NextOffset: 1,
		HasMore:    true,
	}
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t)
	s.orders.page = samplePage()

	req := httptest.NewRequest(http.MethodGet, "/api/orders?totalReceivedItems=0&limit=1", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: s.token(t, 1)})
	w := s.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, auth.Identity{Subject: 1}, s.orders.lastID)
	assert.Equal(t, order.PageRequest{Offset: 0, Limit: 1}, s.orders.req)
	assert.JSONEq(t, `{"data":{
		"orders":[{
			"orderId":7,"userId":3,"name":"Ada","email":"ada@example.com",
			"phoneNumber":"555","streetName":"Main","houseNumber":"1",
			"zipCode":"8000","city":"Aarhus C","coupon":"",
			"totalPrice":25.00,"createdAt":"2024-03-01T12:00:00Z",
			"items":[{"productId":1,"title":"Dune","quantity":2,"price":12.50}]
		}],
		"total":3,"totalReceivedItems":1,"hasMore":true
	}}`, w.Body.String())
}

func TestListOrders_BearerHeader(t *testing.T) {
	s := newTestServer(t)
	s.orders.page = samplePage()

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/orders?totalReceivedItems=0&limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, 9))
	w := s.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(9), s.orders.lastID.Subject)
}

func TestAuthenticatedRoutes_Reject(t *testing.T) {
	for _, tc := range []struct {
		name   string
		header string
	}{
		{"NoToken", ""},
		{"WrongScheme", "Basic abc"},
		{"Garbage", "Bearer not-a-jwt"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			req := httptest.NewRequest(http.MethodGet, "/api/orders?totalReceivedItems=0&limit=1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := s.do(req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"code":401,"message":"Unauthorized"}`, w.Body.String())
			assert.Zero(t, s.orders.calls)
		})
	}
}

func TestListOrders_QueryErrors(t *testing.T) {
	for _, tc := range []struct {
		query string
		msg   string
	}{
		{"", "Missing parameters"},
		{"totalReceivedItems=0", "Missing parameters"},
		{"limit=10", "Missing parameters"},
		{"totalReceivedItems=abc&limit=10", "Invalid pagination parameters"},
		{"totalReceivedItems=0&limit=1.5", "Invalid pagination parameters"},
	} {
		t.Run(tc.query, func(t *testing.T) {
			s := newTestServer(t)
			req := httptest.NewRequest(http.MethodGet, "/api/orders?"+tc.query, nil)
			req.Header.Set("Authorization", "Bearer "+s.token(t, 1))
			w := s.do(req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.msg)
			assert.Zero(t, s.orders.calls)
		})
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"PermissionDenied", apperr.PermissionDenied("role Customer"), 401, `{"code":401,"message":"Insufficient permissions"}`},
		{"NoOrdersLeft", apperr.NotFound(order.MsgNoOrdersLeft), 404, `{"code":404,"message":"No orders left to return"}`},
		{"DataAccess", apperr.DataAccess("calling GetOrderDetails", errors.New("secret detail")), 500, `{"code":500,"message":"Database procedure error"}`},
		{"Unclassified", errors.New("oops"), 500, `{"code":500,"message":"Internal server error"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.orders.err = tc.err
			req := httptest.NewRequest(http.MethodGet, "/api/orders/search?searchInput=ada&totalReceivedItems=0&limit=10", nil)
			req.Header.Set("Authorization", "Bearer "+s.token(t, 1))
			w := s.do(req)

			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
			assert.Equal(t, "ada", s.orders.filter)
		})
	}
}

func TestSearchOrders_MissingInput(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/orders/search?totalReceivedItems=0&limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, 1))
	w := s.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":400,"message":"Missing parameters"}`, w.Body.String())
	assert.Zero(t, s.orders.calls)
}

func TestCreateOrder(t *testing.T) {
	s := newTestServer(t)
	body := `{
		"email": "ada@example.com", "name": "Ada", "phoneNumber": 5551234,
		"streetName": "Main", "houseNumber": "1", "zipCode": "8000", "city": "Aarhus C",
		"coupon": "SPRING24", "totalPrice": "37.50", "ignored": [1, 2],
		"products": {
			"2": {"quantity": 2, "price": 12.50},
			"1": {"quantity": 1, "price": "12.5"}
		}
	}`
	w := s.do(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"data":{"message":"Order created","orderId":42}}`, w.Body.String())

	got := s.orders.created
	assert.Equal(t, "5551234", got.Customer.PhoneNumber)
	assert.Equal(t, "SPRING24", got.Coupon)
	require.True(t, got.TotalPrice.Valid)
	assert.True(t, got.TotalPrice.Decimal.Equal(decimal.RequireFromString("37.5")))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, int64(2), got.Lines[0].ProductID)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.Equal(t, int64(1), got.Lines[1].ProductID)
	assert.True(t, got.Lines[1].Price.Equal(decimal.RequireFromString("12.50")))
}

func TestCreateOrder_BadBodies(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		msg  string
	}{
		{"Empty", "", "Missing parameters"},
		{"NotJSON", "{", "Invalid request body"},
		{"Array", "[]", "Invalid request body"},
		{"ProductKey", `{"products":{"abc":{"quantity":1,"price":1}}}`, "Invalid product id"},
		{"FractionalQuantity", `{"products":{"1":{"quantity":1.5,"price":1}}}`, "Invalid quantity"},
		{"NoPrice", `{"products":{"1":{"quantity":1}}}`, "Missing parameters"},
		{"BadTotal", `{"totalPrice":"ten"}`, "Invalid price"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tc.body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.msg)
			assert.Zero(t, s.orders.calls)
		})
	}
}

func TestCreateOrder_ValidationFromService(t *testing.T) {
	s := newTestServer(t)
	s.orders.err = apperr.Validation(order.MsgTotalMismatch)
	w := s.do(httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"totalPrice":1}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":400,"message":"Total price does not match products"}`, w.Body.String())
}

func TestVerifyCoupon(t *testing.T) {
	for _, tc := range []struct {
		name   string
		body   string
		status int
		resp   string
	}{
		{"Valid", `{"coupon":"SPRING24"}`, 200, `{"data":{"message":"Valid coupon code"}}`},
		{"NoMatch", `{"coupon":"WINTER"}`, 404, `{"code":404,"message":"No matching coupon"}`},
		{"Missing", `{}`, 400, `{"code":400,"message":"Missing parameters"}`},
		{"Malformed", `{"coupon":`, 400, `{"code":400,"message":"Invalid request body"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(httptest.NewRequest(http.MethodPost, "/api/coupons/verify", strings.NewReader(tc.body)))

			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.resp, w.Body.String())
		})
	}
}

func TestCityByZip(t *testing.T) {
	for _, tc := range []struct {
		query  string
		status int
		resp   string
	}{
		{"zipCode=8000", 200, `{"data":{"zipCode":"8000","city":"Aarhus C"}}`},
		{"zipCode=0000", 404, `{"code":404,"message":"No city found for zip code"}`},
		{"", 400, `{"code":400,"message":"Missing parameters"}`},
		{"zipCode=boom", 500, `{"code":500,"message":"Database procedure error"}`},
	} {
		t.Run(tc.query, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(httptest.NewRequest(http.MethodGet, "/api/cities?"+tc.query, nil))

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.resp, w.Body.String())
		})
	}
}
