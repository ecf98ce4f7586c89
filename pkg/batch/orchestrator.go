// Package batch runs inscription fetches for a batch of addresses and
// assembles the per-address result map.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/inscription-grid/pkg/inscriptions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	batchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_requests_total",
		Help: "Batch requests by result",
	}, []string{"result"})

	batchAddressesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batch_addresses_total",
		Help: "Addresses processed across all batches, duplicates included",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_duration_seconds",
		Help:    "Wall time of a batch request",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Shape selects the result layout.
type Shape string

const (
	// ShapeDual maps each address to {held, transferred}.
	ShapeDual Shape = "dual"

	// ShapeHeldOnly maps each address straight to its held outcome. It is the
	// older single-category layout and skips the transfer fetch.
	ShapeHeldOnly Shape = "held"
)

// ParseShape validates a shape name.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapeDual:
		return ShapeDual, nil
	case ShapeHeldOnly:
		return ShapeHeldOnly, nil
	default:
		return "", fmt.Errorf("unknown result shape %q (want %q or %q)", s, ShapeDual, ShapeHeldOnly)
	}
}

// Fetcher is implemented by *inscriptions.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, address string, rng inscriptions.DateRange, mode inscriptions.Mode) (inscriptions.Outcome, error)
}

// Config holds orchestrator configuration.
type Config struct {
	// MaxConcurrency caps how many addresses are fetched at once. 1 keeps
	// processing strictly sequential.
	MaxConcurrency int

	// Shape of the result.
	Shape Shape
}

// DefaultConfig returns sequential processing with the dual shape.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		Shape:          ShapeDual,
	}
}

// AddressResult holds both outcomes for one address. Either side may be an
// error independently of the other.
type AddressResult struct {
	Held        inscriptions.Outcome `json:"held"`
	Transferred inscriptions.Outcome `json:"transferred"`
}

// Result maps addresses to their outcomes.
type Result struct {
	Shape     Shape
	Addresses map[string]AddressResult
}

// MarshalJSON encodes the map in the configured shape.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Shape == ShapeHeldOnly {
		held := make(map[string]inscriptions.Outcome, len(r.Addresses))
		for addr, res := range r.Addresses {
			held[addr] = res.Held
		}
		return json.Marshal(held)
	}
	if r.Addresses == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Addresses)
}

// Orchestrator handles one batch request at a time per call; it keeps no
// state between calls and is safe for concurrent use.
type Orchestrator struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates an Orchestrator.
func New(fetcher Fetcher, cfg Config) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max_concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}
	if cfg.Shape == "" {
		cfg.Shape = ShapeDual
	}
	if _, err := ParseShape(string(cfg.Shape)); err != nil {
		return nil, err
	}

	return &Orchestrator{
		fetcher: fetcher,
		config:  cfg,
		logger:  log.With().Str("component", "batch").Logger(),
	}, nil
}

// Handle validates the dates, fetches every address and returns the result
// map. A malformed date fails the whole call with a *ValidationError before
// any upstream request. Per-address failures never fail the call; they are
// recorded as error outcomes for that address and side.
//
// A repeated address is fetched each time it appears and the later
// occurrence's outcome is the one kept.
func (o *Orchestrator) Handle(ctx context.Context, rawAddresses, fromDate, toDate string) (Result, error) {
	rng, err := ParseDateRange(fromDate, toDate)
	if err != nil {
		batchRequestsTotal.WithLabelValues("invalid").Inc()
		o.logger.Warn().Err(err).Msg("Rejected batch request")
		return Result{}, err
	}

	start := time.Now()
	addresses := SplitAddresses(rawAddresses)
	batchAddressesTotal.Add(float64(len(addresses)))

	results := make([]AddressResult, len(addresses))

	var g errgroup.Group
	g.SetLimit(o.config.MaxConcurrency)
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			results[i] = o.fetchAddress(ctx, address, rng)
			return nil
		})
	}
	_ = g.Wait()

	// Folding in input order keeps "last occurrence wins" independent of
	// worker scheduling.
	byAddress := make(map[string]AddressResult, len(addresses))
	for i, address := range addresses {
		byAddress[address] = results[i]
	}

	elapsed := time.Since(start)
	batchDuration.Observe(elapsed.Seconds())
	batchRequestsTotal.WithLabelValues("ok").Inc()
	o.logger.Info().
		Int("addresses", len(addresses)).
		Int("unique", len(byAddress)).
		Dur("duration", elapsed).
		Msg("Batch complete")

	return Result{Shape: o.config.Shape, Addresses: byAddress}, nil
}

// fetchAddress runs the held fetch and then, for the dual shape, the
// transferred fetch, on the calling goroutine.
func (o *Orchestrator) fetchAddress(ctx context.Context, address string, rng inscriptions.DateRange) AddressResult {
	res := AddressResult{
		Held: o.fetchOne(ctx, address, rng, inscriptions.ModeHeld),
	}
	if o.config.Shape == ShapeDual {
		res.Transferred = o.fetchOne(ctx, address, rng, inscriptions.ModeTransferred)
	}
	return res
}

func (o *Orchestrator) fetchOne(ctx context.Context, address string, rng inscriptions.DateRange, mode inscriptions.Mode) (out inscriptions.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("address", address).
				Str("mode", string(mode)).
				Interface("panic", r).
				Msg("Fetch panicked")
			out = inscriptions.Failed(fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := o.fetcher.Fetch(ctx, address, rng, mode)
	if err != nil {
		o.logger.Warn().
			Err(err).
			Str("address", address).
			Str("mode", string(mode)).
			Msg("Fetch failed")
		return inscriptions.Failed(err)
	}
	return out
}

// SplitAddresses splits on line breaks, trims each line and drops empty ones.
// Order and duplicates are preserved.
func SplitAddresses(raw string) []string {
	lines := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r'
	})

	addresses := make([]string, 0, len(lines))
	for _, line := range lines {
		if a := strings.TrimSpace(line); a != "" {
			addresses = append(addresses, a)
		}
	}
	return addresses
}

// ParseDateRange parses optional YYYY-MM-DD bounds. Empty strings leave the
// bound open. The bounds are not checked against each other.
func ParseDateRange(fromDate, toDate string) (inscriptions.DateRange, error) {
	var rng inscriptions.DateRange

	if fromDate != "" {
		d, err := inscriptions.ParseDate(fromDate)
		if err != nil {
			return rng, &ValidationError{Field: "from_date", Value: fromDate, Err: err}
		}
		rng.From = &d
	}

	if toDate != "" {
		d, err := inscriptions.ParseDate(toDate)
		if err != nil {
			return rng, &ValidationError{Field: "to_date", Value: toDate, Err: err}
		}
		rng.To = &d
	}

	return rng, nil
}
