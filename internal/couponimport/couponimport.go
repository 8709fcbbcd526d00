// Package couponimport reads gzip-compressed coupon campaign files. A code
// defined by more than one campaign is a conflict and is not imported.
//
// Each line is CODE,PERCENT[,VALID_UNTIL]. Blank lines and lines starting
// with # are ignored. VALID_UNTIL is RFC 3339 or a YYYY-MM-DD date, which is
// valid through the end of that day in UTC.
//
// Files are scanned twice and concurrently. The first pass builds a bloom
// filter of the codes in each file. The second pass accepts codes absent from
// every other file's filter and keeps the rest as conflict candidates, which
// are confirmed by exact comparison once all files are scanned.
package couponimport

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/rig-checkout/internal/domain/coupon"
)

const (
	defaultCapacity = 1_000_000
	defaultFPR      = 0.001
	progressEvery   = 1_000_000
	maxFiles        = bits.UintSize
	maxCodeLen      = 64
)

var hundred = decimal.NewFromInt(100)

// Config tunes the scan.
type Config struct {
	// Capacity is the expected number of codes per file.
	Capacity uint
	// FalsePositiveRate of each bloom filter.
	FalsePositiveRate float64
	Logger            *zap.Logger
}

// Result is the outcome of Scan.
type Result struct {
	// Rules are the importable coupons, sorted by code.
	Rules []coupon.Rule
	// Conflicts are the codes defined in more than one file, sorted.
	Conflicts []string
	// Invalid counts lines that could not be parsed.
	Invalid int
}

// fileResult holds the codes found in a single file during pass 2.
type fileResult struct {
	accepted   map[string]coupon.Rule
	candidates map[string]coupon.Rule
	invalid    int
}

// Scan reads files and resolves conflicts between them.
func Scan(ctx context.Context, cfg Config, files []string) (*Result, error) {
	if len(files) > maxFiles {
		return nil, errors.Errorf("too many files: %d, at most %d", len(files), maxFiles)
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.FalsePositiveRate <= 0 {
		cfg.FalsePositiveRate = defaultFPR
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	cfg.Logger.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := buildFilters(ctx, cfg, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	cfg.Logger.Info("Pass 2: resolving conflicts")
	results, err := scanCandidates(ctx, cfg, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "scan candidates")
	}
	return merge(results), nil
}

func buildFilters(ctx context.Context, cfg Config, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.Capacity, cfg.FalsePositiveRate)
			var count uint64
			if err := streamFile(ctx, path, func(rule coupon.Rule) {
				filter.AddString(rule.Code)
				count++
				if count%progressEvery == 0 {
					cfg.Logger.Info("Pass 1 progress", zap.String("file", path), zap.Uint64("codes", count))
				}
			}, nil); err != nil {
				return err
			}
			cfg.Logger.Info("Pass 1 complete", zap.String("file", path), zap.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func scanCandidates(ctx context.Context, cfg Config, files []string, filters []*bloom.BloomFilter) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			res := fileResult{
				accepted:   map[string]coupon.Rule{},
				candidates: map[string]coupon.Rule{},
			}
			err := streamFile(ctx, path, func(rule coupon.Rule) {
				for j, f := range filters {
					if j != i && f.TestString(rule.Code) {
						res.candidates[rule.Code] = rule
						return
					}
				}
				res.accepted[rule.Code] = rule
			}, func(line string, err error) {
				res.invalid++
				cfg.Logger.Debug("Skipping invalid line",
					zap.String("file", path),
					zap.String("line", line),
					zap.Error(err),
				)
			})
			if err != nil {
				return err
			}
			cfg.Logger.Info("Pass 2 complete",
				zap.String("file", path),
				zap.Int("accepted", len(res.accepted)),
				zap.Int("candidates", len(res.candidates)),
				zap.Int("invalid", res.invalid),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// merge accepts candidates that turn out to be bloom false positives and
// reports the rest as conflicts.
func merge(results []fileResult) *Result {
	masks := map[string]uint{}
	rules := map[string]coupon.Rule{}
	out := &Result{}

	for i, r := range results {
		out.Invalid += r.invalid
		for code, rule := range r.accepted {
			rules[code] = rule
		}
		for code, rule := range r.candidates {
			masks[code] |= uint(1) << uint(i)
			rules[code] = rule
		}
	}
	for code, mask := range masks {
		if bits.OnesCount(mask) > 1 {
			delete(rules, code)
			out.Conflicts = append(out.Conflicts, code)
		}
	}

	out.Rules = make([]coupon.Rule, 0, len(rules))
	for _, rule := range rules {
		out.Rules = append(out.Rules, rule)
	}
	sort.Slice(out.Rules, func(i, j int) bool { return out.Rules[i].Code < out.Rules[j].Code })
	sort.Strings(out.Conflicts)
	return out
}

// streamFile calls fn for every valid line of a gzip file and onInvalid, when
// set, for every line that does not parse.
func streamFile(ctx context.Context, path string, fn func(coupon.Rule), onInvalid func(string, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		rule, ok, err := ParseLine(line)
		switch {
		case err != nil:
			if onInvalid != nil {
				onInvalid(line, err)
			}
		case ok:
			fn(rule)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// ParseLine parses one campaign line. It reports false with a nil error for
// blank and comment lines.
func ParseLine(line string) (coupon.Rule, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return coupon.Rule{}, false, nil
	}

	parts := strings.Split(line, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return coupon.Rule{}, false, errors.New("expected CODE,PERCENT[,VALID_UNTIL]")
	}

	code := coupon.NormalizeCode(parts[0])
	if code == "" || len(code) > maxCodeLen {
		return coupon.Rule{}, false, errors.Errorf("invalid code %q", parts[0])
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return coupon.Rule{}, false, errors.Wrap(err, "percentage")
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return coupon.Rule{}, false, errors.Errorf("percentage %s out of range", pct)
	}

	rule := coupon.Rule{
		Code:        code,
		Percentage:  pct,
		Description: pct.String() + "% off",
		Active:      true,
	}
	if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
		until, err := parseUntil(strings.TrimSpace(parts[2]))
		if err != nil {
			return coupon.Rule{}, false, err
		}
		rule.ValidUntil = &until
	}
	return rule, true, nil
}

func parseUntil(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid valid-until %q", s)
	}
	return day.Add(24*time.Hour - time.Nanosecond), nil
}
