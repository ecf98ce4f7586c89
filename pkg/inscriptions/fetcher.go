// Package inscriptions fetches the inscriptions held by, or transferred from,
// a Bitcoin address through the Ordiscan API, filtered by calendar date.
package inscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/inscription-grid/pkg/client"
	"github.com/Sternrassler/inscription-grid/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inscription_fetches_total",
		Help: "Inscription fetches by mode and result",
	}, []string{"mode", "result"})

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inscription_pages_total",
		Help: "Upstream pages requested by mode",
	}, []string{"mode"})
)

// Getter is the subset of *client.Client the fetcher needs.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Fetcher walks the Ordiscan listing for one address and mode.
type Fetcher struct {
	api    Getter
	logger zerolog.Logger
}

// NewFetcher creates a Fetcher on top of an Ordiscan client.
func NewFetcher(api Getter) *Fetcher {
	return &Fetcher{
		api:    api,
		logger: log.With().Str("component", "inscriptions").Logger(),
	}
}

// Fetch pages through the listing for address until the first empty page and
// returns the IDs of matching items in upstream order.
//
// A non-2xx upstream status ends the fetch with an error Outcome and a nil
// error; items already collected are dropped. Transport failures, malformed
// bodies and unparseable timestamps are returned as the error instead, for
// the caller to scope.
func (f *Fetcher) Fetch(ctx context.Context, address string, rng DateRange, mode Mode) (Outcome, error) {
	path, query, err := endpoint(address, mode)
	if err != nil {
		return Outcome{}, err
	}

	logger := f.logger.With().Str("address", address).Str("mode", string(mode)).Logger()
	start := time.Now()

	ids := []string{}
	pages, err := pagination.Walk(ctx, pagination.PageFetcherFunc(func(ctx context.Context, pageNum int) (int, error) {
		pagesTotal.WithLabelValues(string(mode)).Inc()

		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(pageNum))

		body, err := f.api.Get(ctx, path, q)
		if err != nil {
			return 0, err
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return 0, fmt.Errorf("decode response: %w", err)
		}

		for _, rec := range p.Data {
			keep, err := matches(rec, rng, mode)
			if err != nil {
				return 0, err
			}
			if keep {
				ids = append(ids, rec.InscriptionID)
			}
		}

		logger.Debug().Int("page", pageNum).Int("items", len(p.Data)).Msg("Page fetched")
		return len(p.Data), nil
	}))

	if err != nil {
		var oe *client.OrdiscanError
		if errors.As(err, &oe) && oe.StatusCode != 0 {
			fetchesTotal.WithLabelValues(string(mode), "upstream_error").Inc()
			logger.Warn().Int("status", oe.StatusCode).Int("pages", pages).Msg("Upstream returned error status")
			return Failed(oe), nil
		}
		fetchesTotal.WithLabelValues(string(mode), "error").Inc()
		return Outcome{}, fmt.Errorf("fetch %s inscriptions for %s: %w", mode, address, err)
	}

	fetchesTotal.WithLabelValues(string(mode), "ok").Inc()
	logger.Debug().
		Int("pages", pages).
		Int("matched", len(ids)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return Succeeded(ids), nil
}

func endpoint(address string, mode Mode) (string, url.Values, error) {
	escaped := url.PathEscape(address)
	switch mode {
	case ModeHeld:
		return "/v1/address/" + escaped + "/inscriptions", url.Values{}, nil
	case ModeTransferred:
		return "/v1/address/" + escaped + "/activity", url.Values{"type": {"transfer"}}, nil
	default:
		return "", nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// matches applies the date filter and, for transfers, the send-event filter.
// Items without a timestamp are skipped.
func matches(rec Record, rng DateRange, mode Mode) (bool, error) {
	if rec.Timestamp == "" {
		return false, nil
	}

	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return false, err
	}

	if !rng.Contains(ts) {
		return false, nil
	}

	if mode == ModeTransferred && rec.Type != SendEventType {
		return false, nil
	}
	return true, nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseTimestamp parses an Ordiscan timestamp. A trailing "Z" is stripped and
// the remainder read as a naive UTC date-time. Explicit offsets are honoured.
func ParseTimestamp(s string) (time.Time, error) {
	trimmed := strings.TrimSuffix(s, "Z")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
