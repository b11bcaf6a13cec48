//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookclub-orders/internal/domain/access"
	"github.com/xenking/bookclub-orders/internal/domain/order"
	"github.com/xenking/bookclub-orders/internal/storage/postgres"
)

func pageOf(offset, limit int) order.PageRequest {
	return order.PageRequest{Offset: offset, Limit: limit}
}

func TestVerifyCoupon(t *testing.T) {
	resp := call(t, http.MethodPost, "/api/coupons/verify", "", map[string]string{"coupon": validCoupon})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"data":{"message":"Valid coupon code"}}`, string(resp.Body))

	resp = call(t, http.MethodPost, "/api/coupons/verify", "", map[string]string{"coupon": "spring24"})
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp = call(t, http.MethodPost, "/api/coupons/verify", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestCityByZip_CachesInRedis(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, env.rdb.Del(ctx, "city:9000").Err())

	resp := call(t, http.MethodGet, "/api/cities?zipCode=9000", "", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"data":{"zipCode":"9000","city":"Aalborg"}}`, string(resp.Body))

	cached, err := env.rdb.Get(ctx, "city:9000").Result()
	require.NoError(t, err)
	assert.Equal(t, "Aalborg", cached)

	// Served from the cache even after the row changes.
	require.NoError(t, env.rdb.Set(ctx, "city:9000", "Aalborg SV", 0).Err())
	resp = call(t, http.MethodGet, "/api/cities?zipCode=9000", "", nil)
	assert.JSONEq(t, `{"data":{"zipCode":"9000","city":"Aalborg SV"}}`, string(resp.Body))
	require.NoError(t, env.rdb.Del(ctx, "city:9000").Err())

	resp = call(t, http.MethodGet, "/api/cities?zipCode=0001", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	_, err = env.rdb.Get(ctx, "city:0001").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRoleStore(t *testing.T) {
	roles := postgres.NewRoleStore(env.inv)

	role, ok, err := roles.UserRole(context.Background(), env.adminID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, access.RoleAdmin, role)

	role, ok, err = roles.UserRole(context.Background(), env.userID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, access.RoleCustomer, role)

	_, ok, err = roles.UserRole(context.Background(), -1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvoker_HostileInputIsBound(t *testing.T) {
	store := postgres.NewOrderStore(env.inv)
	_, total, err := store.SearchOrders(context.Background(), access.RoleAdmin, "'; DROP TABLE orders; --", pageOf(0, 10))
	require.NoError(t, err)
	assert.Zero(t, total)

	var exists bool
	require.NoError(t, env.pool.QueryRow(context.Background(),
		`SELECT to_regclass('public.orders') IS NOT NULL`).Scan(&exists))
	assert.True(t, exists)
}
