// Package dukascopy downloads historical rates from the Dukascopy public
// datafeed. Ticks are stored there as one LZMA compressed file per
// instrument hour; the client fetches the hours covering a request in
// batches, decodes them and returns ticks or candles in the requested
// format.
package dukascopy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/dukasfetch/market"
)

const (
	DefaultBaseURL             = "https://datafeed.dukascopy.com/datafeed"
	DefaultBatchSize           = 10
	DefaultPauseBetweenBatches = time.Second
	DefaultPauseBetweenRetries = 500 * time.Millisecond
	DefaultTimeout             = 30 * time.Second
	DefaultEmptyHourSettle     = 24 * time.Hour
)

// HourCache stores decompressed hour files keyed by instrument and hour.
type HourCache interface {
	Get(ctx context.Context, instrument string, hour time.Time) ([]byte, bool, error)
	Put(ctx context.Context, instrument string, hour time.Time, data []byte) error
}

// Options configures a Client. A zero BaseURL, BatchSize,
// PauseBetweenRetries, EmptyHourSettle or HTTPClient selects the default. Zero
// PauseBetweenBatches means no pause and zero RetryCount means a failed
// hour fails the request.
type Options struct {
	BaseURL             string
	BatchSize           int
	PauseBetweenBatches time.Duration
	RetryCount          int
	PauseBetweenRetries time.Duration
	HTTPClient          *http.Client
	Cache               HourCache
	Logger              logrus.FieldLogger
	UserAgent           string

	// EmptyHourSettle is how long after its end an hour without ticks must
	// be before it is cached. The datafeed publishes hours with a delay and
	// answers 404 until then.
	EmptyHourSettle time.Duration

	// Now is used to decide whether an hour is complete and safe to cache.
	Now func() time.Time
}

// Client represents a Dukascopy datafeed client
type Client struct {
	baseURL             string
	batchSize           int
	pauseBetweenBatches time.Duration
	retryCount          int
	pauseBetweenRetries time.Duration
	httpClient          *http.Client
	cache               HourCache
	log                 logrus.FieldLogger
	userAgent           string
	emptyHourSettle     time.Duration
	now                 func() time.Time
}

// NewClient creates a datafeed client
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:             opts.BaseURL,
		batchSize:           opts.BatchSize,
		pauseBetweenBatches: opts.PauseBetweenBatches,
		retryCount:          opts.RetryCount,
		pauseBetweenRetries: opts.PauseBetweenRetries,
		httpClient:          opts.HTTPClient,
		cache:               opts.Cache,
		log:                 opts.Logger,
		userAgent:           opts.UserAgent,
		emptyHourSettle:     opts.EmptyHourSettle,
		now:                 opts.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.pauseBetweenBatches < 0 {
		c.pauseBetweenBatches = 0
	}
	if c.retryCount < 0 {
		c.retryCount = 0
	}
	if c.pauseBetweenRetries <= 0 {
		c.pauseBetweenRetries = DefaultPauseBetweenRetries
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	if c.userAgent == "" {
		c.userAgent = "dukasfetch/1.0"
	}
	if c.emptyHourSettle <= 0 {
		c.emptyHourSettle = DefaultEmptyHourSettle
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// GetHistoricalRates downloads every hour touched by req and returns the
// ticks (or candles) inside [req.From, req.To) shaped by req.Format:
// a slice of market.Tick/Quote/Candle/Bar for json, [][]float64 for array
// and a string for csv.
func (c *Client) GetHistoricalRates(ctx context.Context, req Request) (any, error) {
	r, err := req.resolve()
	if err != nil {
		return nil, err
	}

	hours := r.hours()
	c.log.WithFields(logrus.Fields{
		"instrument": r.Instrument,
		"from":       r.From.Format(time.RFC3339),
		"to":         r.To.Format(time.RFC3339),
		"timeframe":  r.Timeframe,
		"hours":      len(hours),
	}).Debug("fetching historical rates")

	perHour, err := c.fetchHours(ctx, r.meta, hours)
	if err != nil {
		return nil, err
	}

	ticks := make([]market.Tick, 0)
	for _, hs := range perHour {
		for _, t := range hs {
			if r.contains(t) {
				ticks = append(ticks, t)
			}
		}
	}
	c.log.WithField("ticks", len(ticks)).Debug("ticks in range")

	return render(ticks, r)
}

// fetchHours downloads hours in batches of batchSize. Results keep the
// order of hours.
func (c *Client) fetchHours(ctx context.Context, meta market.InstrumentMeta, hours []time.Time) ([][]market.Tick, error) {
	results := make([][]market.Tick, len(hours))

	for start := 0; start < len(hours); start += c.batchSize {
		if start > 0 && c.pauseBetweenBatches > 0 {
			c.log.WithField("pause", c.pauseBetweenBatches).Debug("pausing between batches")
			if err := sleep(ctx, c.pauseBetweenBatches); err != nil {
				return nil, err
			}
		}

		end := min(start+c.batchSize, len(hours))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				ticks, err := c.hourTicks(gctx, meta, hours[i])
				if err != nil {
					return fmt.Errorf("%s %s: %w", meta.Name, hours[i].Format("2006-01-02T15"), err)
				}
				results[i] = ticks
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (c *Client) hourTicks(ctx context.Context, meta market.InstrumentMeta, hour time.Time) ([]market.Tick, error) {
	raw, err := c.loadHour(ctx, meta.Name, hour)
	if err != nil {
		return nil, err
	}
	return decodeTicks(raw, hour, meta)
}

// loadHour returns the decompressed records of one hour, from the cache
// when possible. Only settled hours are written back, see cacheable.
func (c *Client) loadHour(ctx context.Context, symbol string, hour time.Time) ([]byte, error) {
	log := c.log.WithFields(logrus.Fields{"instrument": symbol, "hour": hour.Format("2006-01-02T15")})

	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, symbol, hour)
		if err != nil {
			return nil, fmt.Errorf("cache get: %w", err)
		}
		if ok {
			log.Debug("cache hit")
			return data, nil
		}
	}

	data, err := c.download(ctx, symbol, hour)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.cacheable(hour, data) {
		if err := c.cache.Put(ctx, symbol, hour, data); err != nil {
			log.WithError(err).Info("cache put failed")
		}
	}
	return data, nil
}

// cacheable reports whether an hour can no longer change on the datafeed.
// An hour with ticks is final once it has ended; an empty one only after
// emptyHourSettle more, since it may simply not be published yet.
func (c *Client) cacheable(hour time.Time, data []byte) bool {
	final := hour.Add(time.Hour)
	if len(data) == 0 {
		final = final.Add(c.emptyHourSettle)
	}
	return !final.After(c.now())
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
