// Command coupon-ingest imports coupon codes from gzip-compressed code
// lists. A code is accepted when it appears in at least --min-files of the
// lists; accepted codes are encrypted and stored through CreateCoupon.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/internal/domain/coupon"
	"github.com/xenking/bookclub-orders/internal/storage/postgres"
)

func main() {
	var (
		pattern     string
		databaseURL string
		couponKey   string
		dryRun      bool
		cfg         scanConfig
	)
	flag.StringVar(&pattern, "files", "data/couponbase*.gz", "glob of gzip coupon files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponKey, "coupon-key", "", "hex coupon key (or BOOKCLUB_COUPON_KEY env)")
	flag.BoolVar(&dryRun, "dry-run", false, "scan and report without writing")
	flag.UintVar(&cfg.Capacity, "capacity", 120_000_000, "expected codes per file")
	flag.Float64Var(&cfg.FalsePositiveRate, "fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&cfg.MinFiles, "min-files", 2, "files a code must appear in")
	flag.IntVar(&cfg.MinLen, "min-len", 8, "minimum code length")
	flag.IntVar(&cfg.MaxLen, "max-len", 10, "maximum code length")
	flag.Uint64Var(&cfg.ProgressEvery, "progress", 10_000_000, "log progress every N codes")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if couponKey == "" {
		couponKey = os.Getenv("BOOKCLUB_COUPON_KEY")
	}

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if !dryRun && (databaseURL == "" || couponKey == "") {
		lg.Fatal("Database URL and coupon key are required unless --dry-run is set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, pattern, databaseURL, couponKey, dryRun, cfg); err != nil {
		lg.Fatal("Coupon ingest failed", zap.Error(err))
	}
	lg.Info("Coupon ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, pattern, databaseURL, couponKey string, dryRun bool, cfg scanConfig) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "glob files")
	}
	s, err := newScanner(lg, cfg, files)
	if err != nil {
		return err
	}

	lg.Info("Scanning", zap.Strings("files", files), zap.Int("min_files", cfg.MinFiles))
	codes, err := s.Run(ctx)
	if err != nil {
		return err
	}
	lg.Info("Shared codes found", zap.Int("count", len(codes)))
	if dryRun || len(codes) == 0 {
		return nil
	}

	key, err := coupon.ParseKey(couponKey)
	if err != nil {
		return errors.Wrap(err, "coupon key")
	}
	cipher, err := coupon.NewCipher(key)
	if err != nil {
		return errors.Wrap(err, "coupon cipher")
	}

	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	inv, err := postgres.NewInvoker(pool, postgres.InvokerOptions{})
	if err != nil {
		return errors.Wrap(err, "create invoker")
	}
	return store(ctx, lg, postgres.NewCouponStore(inv), cipher, codes)
}

// couponWriter is implemented by *postgres.CouponStore.
type couponWriter interface {
	coupon.Store
	Create(ctx context.Context, encrypted string) (int64, error)
}

// store encrypts and writes every code not already stored. Existing
// coupons are decrypted once up front; unreadable ones are ignored.
func store(ctx context.Context, lg *zap.Logger, w couponWriter, cipher *coupon.Cipher, codes []string) error {
	stored, err := w.Coupons(ctx)
	if err != nil {
		return errors.Wrap(err, "load stored coupons")
	}
	known := make(map[string]struct{}, len(stored))
	for _, c := range stored {
		if code, err := cipher.Open(c.EncryptedCode); err == nil {
			known[code] = struct{}{}
		}
	}

	var written int
	for _, code := range codes {
		if _, ok := known[code]; ok {
			continue
		}
		sealed, err := cipher.Seal(code)
		if err != nil {
			return errors.Wrapf(err, "encrypt %s", code)
		}
		if _, err := w.Create(ctx, sealed); err != nil {
			return errors.Wrapf(err, "store %s", code)
		}
		known[code] = struct{}{}
		written++
		if written%100 == 0 {
			lg.Info("Write progress", zap.Int("written", written), zap.Int("total", len(codes)))
		}
	}
	lg.Info("Coupons stored", zap.Int("written", written), zap.Int("skipped", len(codes)-written))
	return nil
}
