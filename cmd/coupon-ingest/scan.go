package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxSources is bounded by the width of the per-code file bitmask.
const maxSources = bits.UintSize

// scanConfig tunes the two-pass scan.
type scanConfig struct {
	// Capacity is the expected number of codes per file.
	Capacity uint
	// FalsePositiveRate of each bloom filter.
	FalsePositiveRate float64
	// MinFiles is how many distinct files a code must appear in.
	MinFiles int
	MinLen   int
	MaxLen   int
	// ProgressEvery logs progress every N codes of a file; 0 disables it.
	ProgressEvery uint64
}

func (c scanConfig) accepts(code string) bool {
	return len(code) >= c.MinLen && len(code) <= c.MaxLen
}

// scanner finds codes shared by at least MinFiles of the given gzip files.
//
// Pass one builds a bloom filter per file concurrently. Pass two re-reads
// each file and keeps the codes that another file's filter may contain;
// the exact per-file bitmasks of these candidates decide the result, so
// bloom false positives never leak into the output.
type scanner struct {
	cfg   scanConfig
	lg    *zap.Logger
	files []string
}

func newScanner(lg *zap.Logger, cfg scanConfig, files []string) (*scanner, error) {
	switch {
	case len(files) < 2:
		return nil, errors.New("at least two coupon files are required")
	case len(files) > maxSources:
		return nil, errors.Errorf("at most %d coupon files are supported", maxSources)
	case cfg.MinFiles < 2 || cfg.MinFiles > len(files):
		return nil, errors.Errorf("min files must be in [2, %d]", len(files))
	}
	return &scanner{cfg: cfg, lg: lg, files: files}, nil
}

// Run returns the shared codes in lexical order.
func (s *scanner) Run(ctx context.Context) ([]string, error) {
	filters, err := s.buildFilters(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "build filters")
	}
	masks, err := s.collectCandidates(ctx, filters)
	if err != nil {
		return nil, errors.Wrap(err, "collect candidates")
	}

	var shared []string
	for code, mask := range masks {
		if bits.OnesCount(mask) >= s.cfg.MinFiles {
			shared = append(shared, code)
		}
	}
	slices.Sort(shared)
	return shared, nil
}

func (s *scanner) buildFilters(ctx context.Context) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(s.files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range s.files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(s.cfg.Capacity, s.cfg.FalsePositiveRate)
			n, err := s.stream(ctx, path, "index", func(code string) {
				filter.AddString(code)
			})
			if err != nil {
				return err
			}
			s.lg.Info("File indexed", zap.String("file", path), zap.Uint64("codes", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func (s *scanner) collectCandidates(ctx context.Context, filters []*bloom.BloomFilter) (map[string]uint, error) {
	perFile := make([]map[string]uint, len(s.files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range s.files {
		g.Go(func() error {
			bit := uint(1) << uint(i)
			found := make(map[string]uint)
			n, err := s.stream(ctx, path, "match", func(code string) {
				for j, f := range filters {
					if j != i && f.TestString(code) {
						found[code] |= bit
						return
					}
				}
			})
			if err != nil {
				return err
			}
			s.lg.Info("File matched",
				zap.String("file", path),
				zap.Uint64("codes", n),
				zap.Int("candidates", len(found)),
			)
			perFile[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, found := range perFile {
		for code, mask := range found {
			merged[code] |= mask
		}
	}
	return merged, nil
}

// stream calls fn for every accepted line of the gzip file at path and
// returns how many lines were accepted.
func (s *scanner) stream(ctx context.Context, path, phase string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "gzip %s", path)
	}
	defer func() { _ = gz.Close() }()

	var n uint64
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		code := sc.Text()
		if !s.cfg.accepts(code) {
			continue
		}
		fn(code)
		n++
		if s.cfg.ProgressEvery > 0 && n%s.cfg.ProgressEvery == 0 {
			s.lg.Debug("Progress", zap.String("phase", phase), zap.String("file", path), zap.Uint64("codes", n))
		}
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrapf(err, "read %s", path)
	}
	return n, nil
}
