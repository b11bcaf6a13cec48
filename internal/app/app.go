// Package app wires the API server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bookclub-orders/internal/domain/access"
	"github.com/xenking/bookclub-orders/internal/domain/auth"
	"github.com/xenking/bookclub-orders/internal/domain/city"
	"github.com/xenking/bookclub-orders/internal/domain/coupon"
	"github.com/xenking/bookclub-orders/internal/domain/order"
	"github.com/xenking/bookclub-orders/internal/handler"
	"github.com/xenking/bookclub-orders/internal/storage/postgres"
	"github.com/xenking/bookclub-orders/internal/storage/rediscache"
	"github.com/xenking/bookclub-orders/pkg/health"
	"github.com/xenking/bookclub-orders/pkg/httpmiddleware"
)

const serviceName = "bookclub-api"

// Run builds every dependency, serves HTTP until ctx is done and then
// drains the server.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	inv, err := postgres.NewInvoker(pool, postgres.InvokerOptions{
		CallTimeout:    cfg.CallTimeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create invoker")
	}

	key, err := coupon.ParseKey(cfg.CouponKey)
	if err != nil {
		return errors.Wrap(err, "coupon key")
	}
	cipher, err := coupon.NewCipher(key)
	if err != nil {
		return errors.Wrap(err, "coupon cipher")
	}
	resolver, err := auth.NewJWTResolver([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		return errors.Wrap(err, "jwt resolver")
	}

	monitor := health.New()
	monitor.Add(health.Check{Name: "goroutines", Probe: health.Liveness, Func: health.GoroutineLimit(10000)})
	monitor.Add(health.Check{Name: "postgres", Probe: health.Readiness, Timeout: 5 * time.Second, Func: health.Ping(pool)})

	var cityCache city.Cache
	if cfg.Redis.Addr != "" {
		rdb, err := rediscache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		cityCache = rediscache.NewCityCache(rdb, cfg.Redis.CityTTL)
		monitor.Add(health.Check{Name: "redis", Probe: health.Readiness, Func: pingRedis(rdb)})
		lg.Info("City cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.CityTTL))
	}

	coupons := coupon.NewValidator(postgres.NewCouponStore(inv), cipher)
	orders := order.NewService(
		access.NewGate(postgres.NewRoleStore(inv)),
		coupons,
		postgres.NewOrderStore(inv),
	)
	cities := city.NewService(postgres.NewCityStore(inv), cityCache)

	mux := http.NewServeMux()
	mux.Handle("GET /livez", monitor.Handler(health.Liveness))
	mux.Handle("GET /readyz", monitor.Handler(health.Readiness))
	handler.New(orders, coupons, cities, resolver).Register(mux)

	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:            cfg.RateLimit.Max,
				Window:         cfg.RateLimit.Window,
				TrustForwarded: cfg.RateLimit.TrustForwarded,
			}),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gCtx, 10*time.Second)
	})
	g.Go(func() error {
		<-gCtx.Done()
		monitor.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		monitor.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

func pingRedis(rdb *redis.Client) health.CheckFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
