// Command seed-db applies the schema and loads demo data: books, zip codes,
// an admin account and encrypted coupons. It prints a session token for the
// admin when a JWT secret is given.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/db"
	"github.com/xenking/bookclub-orders/internal/domain/auth"
	"github.com/xenking/bookclub-orders/internal/domain/coupon"
	"github.com/xenking/bookclub-orders/internal/storage/postgres"
)

type options struct {
	databaseURL string
	catalogFile string
	couponKey   string
	coupons     string
	adminEmail  string
	adminName   string
	jwtSecret   string
	tokenTTL    time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog", "", "catalog JSON file, defaults to the embedded catalog")
	flag.StringVar(&opts.couponKey, "coupon-key", "", "hex coupon key (or BOOKCLUB_COUPON_KEY env)")
	flag.StringVar(&opts.coupons, "coupons", "SPRING24,BOOKWORM", "comma-separated coupon codes to store")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@bookclub.local", "admin account email")
	flag.StringVar(&opts.adminName, "admin-name", "Admin", "admin account name")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "JWT secret to issue an admin token with (or BOOKCLUB_JWT_SECRET env)")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "admin token lifetime")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.couponKey = orEnv(opts.couponKey, "BOOKCLUB_COUPON_KEY")
	opts.jwtSecret = orEnv(opts.jwtSecret, "BOOKCLUB_JWT_SECRET")

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.couponKey == "" {
		lg.Fatal("Coupon key is required: set --coupon-key or BOOKCLUB_COUPON_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data := db.Catalog
	if opts.catalogFile != "" {
		var err error
		if data, err = os.ReadFile(opts.catalogFile); err != nil {
			return errors.Wrap(err, "read catalog")
		}
	}
	cat, err := parseCatalog(data)
	if err != nil {
		return errors.Wrap(err, "parse catalog")
	}

	key, err := coupon.ParseKey(opts.couponKey)
	if err != nil {
		return errors.Wrap(err, "coupon key")
	}
	cipher, err := coupon.NewCipher(key)
	if err != nil {
		return errors.Wrap(err, "coupon cipher")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL, postgres.PoolConfig{})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, lg, pool, cat); err != nil {
		return err
	}

	adminID, err := seedAdmin(ctx, pool, opts.adminName, opts.adminEmail)
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}
	lg.Info("Admin account ready", zap.Int64("user_id", adminID), zap.String("email", opts.adminEmail))

	inv, err := postgres.NewInvoker(pool, postgres.InvokerOptions{})
	if err != nil {
		return errors.Wrap(err, "create invoker")
	}
	if err := seedCoupons(ctx, lg, inv, cipher, splitCodes(opts.coupons)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if opts.jwtSecret != "" {
		resolver, err := auth.NewJWTResolver([]byte(opts.jwtSecret), "")
		if err != nil {
			return errors.Wrap(err, "jwt resolver")
		}
		token, err := resolver.Issue(adminID, opts.tokenTTL)
		if err != nil {
			return errors.Wrap(err, "issue admin token")
		}
		lg.Info("Admin token issued", zap.String("token", token), zap.Duration("ttl", opts.tokenTTL))
	}
	return nil
}

func seedCatalog(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, cat catalog) error {
	batch := &pgx.Batch{}
	for _, b := range cat.Books {
		batch.Queue(`INSERT INTO products (product_id, title, author, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id) DO UPDATE
			SET title = EXCLUDED.title, author = EXCLUDED.author, price = EXCLUDED.price`,
			b.ID, b.Title, b.Author, b.Price)
	}
	batch.Queue(`SELECT setval(pg_get_serial_sequence('products', 'product_id'),
		GREATEST((SELECT MAX(product_id) FROM products), 1))`)
	for _, z := range cat.ZipCodes {
		batch.Queue(`INSERT INTO zip_codes (zip_code, city) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			z.ZipCode, z.City)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	lg.Info("Catalog seeded", zap.Int("books", len(cat.Books)), zap.Int("zip_codes", len(cat.ZipCodes)))
	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, name, email string) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `INSERT INTO users (name, email, role)
		VALUES ($1, $2, 'Admin')
		ON CONFLICT ((lower(email))) DO UPDATE SET role = 'Admin'
		RETURNING user_id`, name, email).Scan(&id)
	return id, err
}

// seedCoupons stores every code that does not decrypt-match an existing
// coupon yet, so reruns do not duplicate them.
func seedCoupons(ctx context.Context, lg *zap.Logger, inv *postgres.Invoker, cipher *coupon.Cipher, codes []string) error {
	store := postgres.NewCouponStore(inv)
	existing := coupon.NewValidator(store, cipher)

	for _, code := range codes {
		ok, err := existing.Validate(ctx, code)
		if err != nil {
			return errors.Wrapf(err, "check %s", code)
		}
		if ok {
			lg.Info("Coupon already stored", zap.String("code", code))
			continue
		}

		sealed, err := cipher.Seal(code)
		if err != nil {
			return errors.Wrapf(err, "encrypt %s", code)
		}
		id, err := store.Create(ctx, sealed)
		if err != nil {
			return errors.Wrapf(err, "store %s", code)
		}
		lg.Info("Coupon stored", zap.String("code", code), zap.Int64("coupon_id", id))
	}
	return nil
}

func splitCodes(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
